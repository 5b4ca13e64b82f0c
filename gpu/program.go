package gpu

import "slices"

// Program is an activated-by-reference shader program with uniforms settable
// by name. Names the program does not declare are ignored.
type Program interface {
	Label() string
	SetInt(name string, v int32)
	SetFloat(name string, v float32)
}

// Uniforms is a name-keyed uniform store backends embed in their programs.
// Only declared names are kept, matching how an unresolved uniform location
// is silently skipped.
type Uniforms struct {
	ints     map[string]int32
	floats   map[string]float32
	declared []string
}

// NewUniforms declares the uniform names a program accepts.
func NewUniforms(names ...string) Uniforms {
	return Uniforms{
		ints:     make(map[string]int32),
		floats:   make(map[string]float32),
		declared: names,
	}
}

func (u *Uniforms) SetInt(name string, v int32) {
	if !slices.Contains(u.declared, name) {
		return
	}
	u.ints[name] = v
}

func (u *Uniforms) SetFloat(name string, v float32) {
	if !slices.Contains(u.declared, name) {
		return
	}
	u.floats[name] = v
}

// Int returns the int uniform name, or 0 when it was never set.
func (u *Uniforms) Int(name string) int32 {
	return u.ints[name]
}

// Float returns the float uniform name, or 0 when it was never set.
func (u *Uniforms) Float(name string) float32 {
	return u.floats[name]
}

// Ints returns a copy of every int uniform that has been set.
func (u *Uniforms) Ints() map[string]int32 {
	out := make(map[string]int32, len(u.ints))
	for k, v := range u.ints {
		out[k] = v
	}
	return out
}
