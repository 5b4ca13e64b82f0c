package bloom

import "fmt"

// Source names a texture the blur loop reads from or writes to.
type Source int

const (
	SourceBrightPass Source = iota
	SourcePingPong0
	SourcePingPong1
)

func (s Source) String() string {
	switch s {
	case SourceBrightPass:
		return "bright-pass"
	case SourcePingPong0:
		return "ping-pong 0"
	case SourcePingPong1:
		return "ping-pong 1"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// pingPong maps a ping-pong index to its Source.
func pingPong(i int) Source {
	return SourcePingPong0 + Source(i)
}

// BlurStep is one iteration of the blur loop.
type BlurStep struct {
	Read       Source
	Write      int // ping-pong index
	Horizontal bool
}

// blurSchedule lays out passes iterations of the separable blur as explicit
// states: WriteB/ReadBright, WriteA/ReadB, WriteB/ReadA, ... where B is
// ping-pong 1 (horizontal) and A ping-pong 0 (vertical). final is the Source
// holding the finished result, the bright-pass texture itself when passes is
// zero.
func blurSchedule(passes int) (steps []BlurStep, final Source) {
	final = SourceBrightPass
	read := SourceBrightPass
	horizontal := true
	for range max(passes, 0) {
		write := 0
		if horizontal {
			write = 1
		}
		steps = append(steps, BlurStep{Read: read, Write: write, Horizontal: horizontal})

		read = pingPong(write)
		final = read
		horizontal = !horizontal
	}
	return steps, final
}
