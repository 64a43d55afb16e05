package utils

import (
	"fmt"
	"unsafe"
)

// PointerToBytes exposes the memory of *val as a byte slice of exactly
// Sizeof(T) bytes. T must not contain pointers.
func PointerToBytes[T any](val *T) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(val)), unsafe.Sizeof(*val))
}

// BytesToPointer reinterprets the start of b as a *T. The caller keeps b
// alive and aligned for T.
func BytesToPointer[T any](b []byte) *T {
	var zero T

	if size := int(unsafe.Sizeof(zero)); len(b) < size {
		panic(fmt.Sprintf("utils: %d bytes cannot hold a %T of %d bytes", len(b), zero, size))
	}

	return (*T)(unsafe.Pointer(unsafe.SliceData(b)))
}
