package session

// OneShot is a request/acknowledge slot. A producer sets it, the consumer
// reads it with Take, which also resets it. It is not safe for concurrent use
// on its own; State guards every OneShot it owns.
type OneShot[T any] struct {
	v   T
	set bool
}

// Set stores v, replacing any unconsumed value
func (o *OneShot[T]) Set(v T) {
	o.v = v
	o.set = true
}

// Peek returns the value without consuming it
func (o *OneShot[T]) Peek() (T, bool) {
	return o.v, o.set
}

// Take returns the value and resets the slot
func (o *OneShot[T]) Take() (T, bool) {
	v, ok := o.v, o.set
	o.Clear()
	return v, ok
}

// IsSet reports whether a value is waiting
func (o *OneShot[T]) IsSet() bool {
	return o.set
}

// Clear drops any waiting value
func (o *OneShot[T]) Clear() {
	var zero T
	o.v = zero
	o.set = false
}
