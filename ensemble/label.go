package ensemble

// Alphabet is the fixed alphabet the class labels index into.
const Alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// Label is a class index, 0 for 'A' through 25 for 'Z'.
type Label int

// Letter returns the letter of the label, or '?' outside the alphabet.
func (l Label) Letter() byte {
	if l < 0 || int(l) >= len(Alphabet) {
		return '?'
	}
	return Alphabet[l]
}

func (l Label) String() string {
	return string(l.Letter())
}

// LabelOf returns the label of an upper case letter.
func LabelOf(letter byte) (Label, bool) {
	if letter < 'A' || letter > 'Z' {
		return 0, false
	}
	return Label(letter - 'A'), true
}
