package midi

// Parser splits a raw MIDI byte stream into messages. It keeps the running
// status, passes real time bytes through as they appear and collects system
// exclusive dumps into one message.
type Parser struct {
	status   uint8
	buf      []byte
	sysex    bool
	maxSysEx int
}

// NewParser creates a parser discarding system exclusive messages longer
// than maxSysEx bytes, 0 means no limit.
func NewParser(maxSysEx int) *Parser {
	return &Parser{maxSysEx: maxSysEx}
}

// Feed consumes data and returns the messages completed by it. The returned
// events do not share memory with the parser.
func (p *Parser) Feed(data []byte) []Event {
	var out []Event
	for _, b := range data {
		switch {
		case b >= 0xf8:
			// real time, may appear anywhere
			out = append(out, Event{b})
		case b == 0xf0:
			p.status = 0
			p.sysex = true
			p.buf = append(p.buf[:0], b)
		case b == 0xf7:
			if p.sysex {
				p.sysex = false
				if p.maxSysEx == 0 || len(p.buf)+1 <= p.maxSysEx {
					out = append(out, p.emit(append(p.buf, b)))
				}
			}
			p.buf = p.buf[:0]
		case b&0x80 != 0:
			p.sysex = false
			p.buf = append(p.buf[:0], b)
			if b < System {
				p.status = b
			} else {
				// system common cancels running status
				p.status = 0
			}
			if Length(b) == 1 {
				out = append(out, p.emit(p.buf))
				p.buf = p.buf[:0]
			}
		case p.sysex:
			p.buf = append(p.buf, b)
			if p.maxSysEx > 0 && len(p.buf) > p.maxSysEx {
				p.sysex = false
				p.buf = p.buf[:0]
			}
		default:
			if len(p.buf) == 0 {
				if p.status == 0 {
					// stray data byte
					continue
				}
				p.buf = append(p.buf, p.status)
			}
			p.buf = append(p.buf, b)
			if len(p.buf) == Length(p.buf[0]) {
				out = append(out, p.emit(p.buf))
				p.buf = p.buf[:0]
			}
		}
	}
	return out
}

func (p *Parser) emit(b []byte) Event {
	e := make(Event, len(b))
	copy(e, b)
	return e
}
