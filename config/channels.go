package config

// Channel names accepted as keys of the channels table.
const (
	ChannelRadioToDSP    = "radio_to_dsp"
	ChannelDSPToRadio    = "dsp_to_radio"
	ChannelMicToDSP      = "mic_to_dsp"
	ChannelDSPToSpeaker  = "dsp_to_speaker"
	ChannelDSPToLoopback = "dsp_to_loopback"
	ChannelLoopbackToDSP = "loopback_to_dsp"
)

var channelNames = [...]string{
	ChannelRadioToDSP,
	ChannelDSPToRadio,
	ChannelMicToDSP,
	ChannelDSPToSpeaker,
	ChannelDSPToLoopback,
	ChannelLoopbackToDSP,
}

// ChannelNames returns every channel name in a stable order. The slice is a
// copy.
func ChannelNames() []string {
	names := make([]string, len(channelNames))
	copy(names, channelNames[:])
	return names
}

func KnownChannel(name string) bool {
	for _, n := range channelNames {
		if n == name {
			return true
		}
	}

	return false
}
