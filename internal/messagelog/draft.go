package messagelog

// Draft is the local unsent message text. Every edit bumps the revision so a
// send acknowledgement that arrives after the user moved on cannot clear or
// restore text the user no longer has.
type Draft struct {
	text string
	rev  uint64
}

// Set replaces the draft text.
func (d *Draft) Set(text string) {
	d.text = text
	d.rev++
}

func (d *Draft) Text() string     { return d.text }
func (d *Draft) Revision() uint64 { return d.rev }

// Capture returns the text to send together with the revision it belongs to.
func (d *Draft) Capture() (string, uint64) {
	return d.text, d.rev
}

// Settle applies the outcome of a send captured at rev. A successful send clears
// the draft only if it was not edited since; a failed send leaves it untouched.
// It reports whether the draft was cleared.
func (d *Draft) Settle(rev uint64, err error) bool {
	if err != nil || rev != d.rev {
		return false
	}
	d.Set("")
	return true
}
