package pipeline

// Bag is the mutable key/value state shared by all steps and background
// tasks of one request. It is created fresh per request and handed
// around by reference, never copied. The engine does not serialize
// access: during the pipeline phase the executor owns it exclusively;
// background tasks sharing it must coordinate among themselves.
type Bag map[string]any

// NewBag returns an empty bag.
func NewBag() Bag {
	return make(Bag)
}

// Lookup returns the raw value for key and whether it is present.
func (b Bag) Lookup(key string) (any, bool) {
	v, ok := b[key]
	return v, ok
}

// String returns the string value for key, or "" if absent or not a string.
func (b Bag) String(key string) string {
	s, _ := b[key].(string)
	return s
}

// Int returns the int value for key, or 0 if absent or not an int.
func (b Bag) Int(key string) int {
	n, _ := b[key].(int)
	return n
}

// Bool returns the bool value for key, or false if absent or not a bool.
func (b Bag) Bool(key string) bool {
	v, _ := b[key].(bool)
	return v
}
