package orientation

// Option is an Orientation that may be absent, e.g. before the first
// sensor sample arrived. The zero value is None.
type Option struct {
	value Orientation
	ok    bool
}

// Some wraps o as a present value.
func Some(o Orientation) Option {
	return Option{value: o, ok: true}
}

// None returns an absent value.
func None() Option {
	return Option{}
}

// Get returns the wrapped value and whether it is present.
func (p Option) Get() (Orientation, bool) {
	return p.value, p.ok
}

// IsSome reports whether a value is present.
func (p Option) IsSome() bool {
	return p.ok
}

// OrZero returns the wrapped value, or the zero orientation when absent.
func (p Option) OrZero() Orientation {
	if !p.ok {
		return Orientation{}
	}
	return p.value
}
