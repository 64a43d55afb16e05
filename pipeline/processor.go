package pipeline

// Passthrough is a Processor that routes audio without altering it: the
// received signal goes to the speaker and the loopback device, the transmit
// signal goes to the radio.
type Passthrough struct{}

var _ Processor = Passthrough{}

func (Passthrough) RX(radio, speaker, loopback, tx []byte) {
	copy(speaker, radio)
	copy(loopback, radio)
	clear(tx)
}

func (Passthrough) TX(signal, speaker, loopback, tx []byte, _ bool) {
	copy(tx, signal)
	clear(speaker)
	clear(loopback)
}
