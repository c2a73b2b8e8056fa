package gpu

// UniformKind is the GLSL type of a uniform.
type UniformKind int

const (
	UniformFloat UniformKind = iota
	UniformInt
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
)

// Uniform is one named shader input. Only the first Components() entries of
// Value are used.
type Uniform struct {
	Name  string
	Kind  UniformKind
	Value [16]float32
}

func (u Uniform) Components() int {
	switch u.Kind {
	case UniformVec2:
		return 2
	case UniformVec3:
		return 3
	case UniformVec4:
		return 4
	case UniformMat4:
		return 16
	default:
		return 1
	}
}

// UniformSet is the full list of uniforms for one draw.
type UniformSet []Uniform

// Lookup finds a uniform by name.
func (s UniformSet) Lookup(name string) (Uniform, bool) {
	for _, u := range s {
		if u.Name == name {
			return u, true
		}
	}
	return Uniform{}, false
}

func Float(name string, v float32) Uniform {
	return Uniform{Name: name, Kind: UniformFloat, Value: [16]float32{v}}
}

func Int(name string, v int32) Uniform {
	return Uniform{Name: name, Kind: UniformInt, Value: [16]float32{float32(v)}}
}

func Bool(name string, v bool) Uniform {
	if v {
		return Int(name, 1)
	}
	return Int(name, 0)
}

func Vec2(name string, x, y float32) Uniform {
	return Uniform{Name: name, Kind: UniformVec2, Value: [16]float32{x, y}}
}

func Vec3(name string, x, y, z float32) Uniform {
	return Uniform{Name: name, Kind: UniformVec3, Value: [16]float32{x, y, z}}
}

func Vec4(name string, x, y, z, w float32) Uniform {
	return Uniform{Name: name, Kind: UniformVec4, Value: [16]float32{x, y, z, w}}
}

func Mat4(name string, m [16]float32) Uniform {
	return Uniform{Name: name, Kind: UniformMat4, Value: m}
}
