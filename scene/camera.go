package scene

import (
	stdmath "math"

	"soft-render/io"
	"soft-render/math"
)

// Camera is a look-at camera with a symmetric perspective projection.
// FovY is in degrees.
type Camera struct {
	Eye    math.Vec3
	Center math.Vec3
	Up     math.Vec3
	FovY   float32
	Aspect float32
	Near   float32
	Far    float32
}

// Frame is the per-frame camera state handed to shaders. It is a value and
// never changes once built.
type Frame struct {
	View       math.Mat4
	Projection math.Mat4
	Eye        math.Vec3
}

// ViewProjection returns Projection·View.
func (f Frame) ViewProjection() math.Mat4 {
	return f.Projection.Mul(f.View)
}

func NewCamera(fovY, aspect, near, far float32) *Camera {
	return &Camera{
		Eye:    math.Vec3{Z: 3},
		Up:     math.Vec3Up,
		FovY:   fovY,
		Aspect: aspect,
		Near:   near,
		Far:    far,
	}
}

// CameraFromConfig builds a camera from render config values.
func CameraFromConfig(cfg io.CameraConfig, aspect float32) *Camera {
	return &Camera{
		Eye:    io.ArrayToVec3(cfg.Eye),
		Center: io.ArrayToVec3(cfg.Center),
		Up:     io.ArrayToVec3(cfg.Up),
		FovY:   cfg.FovY,
		Aspect: aspect,
		Near:   cfg.Near,
		Far:    cfg.Far,
	}
}

// Config returns the camera as render config values.
func (c *Camera) Config() io.CameraConfig {
	return io.CameraConfig{
		Eye:    io.Vec3ToArray(c.Eye),
		Center: io.Vec3ToArray(c.Center),
		Up:     io.Vec3ToArray(c.Up),
		FovY:   c.FovY,
		Near:   c.Near,
		Far:    c.Far,
	}
}

// Validate reports io.ErrInvalidCamera for parameters that would produce a
// degenerate view or projection matrix. Frame does not check.
func (c *Camera) Validate() error {
	return c.Config().Validate()
}

func (c *Camera) UpdateAspectRatio(width, height float32) {
	if height > 0 {
		c.Aspect = width / height
	}
}

// Frame builds the view and projection matrices for the current parameters.
func (c *Camera) Frame() Frame {
	return Frame{
		View:       math.Mat4LookAt(c.Eye, c.Center, c.Up),
		Projection: math.Mat4Perspective(c.FovY, c.Aspect, c.Near, c.Far),
		Eye:        c.Eye,
	}
}

// Forward returns the unit view direction.
func (c *Camera) Forward() math.Vec3 {
	return c.Center.Sub(c.Eye).Normalize()
}

// OrbitCamera keeps its eye on a sphere around Center.
type OrbitCamera struct {
	Camera
	Distance float32
	Yaw      float32
	Pitch    float32
}

func NewOrbitCamera(target math.Vec3, distance, fovY, aspect float32) *OrbitCamera {
	c := &OrbitCamera{
		Distance: distance,
		Pitch:    0.3,
	}
	c.Camera = *NewCamera(fovY, aspect, 0.1, 1000.0)
	c.Center = target
	c.UpdatePosition()
	return c
}

// UpdatePosition recomputes Eye from Yaw, Pitch and Distance. Pitch stays
// inside (-pi/2, pi/2) so the world up vector never lines up with the view.
func (c *OrbitCamera) UpdatePosition() {
	if c.Pitch > 1.5 {
		c.Pitch = 1.5
	}
	if c.Pitch < -1.5 {
		c.Pitch = -1.5
	}

	cosPitch := float32(stdmath.Cos(float64(c.Pitch)))
	sinPitch := float32(stdmath.Sin(float64(c.Pitch)))
	cosYaw := float32(stdmath.Cos(float64(c.Yaw)))
	sinYaw := float32(stdmath.Sin(float64(c.Yaw)))

	offset := math.Vec3{
		X: c.Distance * cosPitch * sinYaw,
		Y: c.Distance * sinPitch,
		Z: c.Distance * cosPitch * cosYaw,
	}
	c.Eye = c.Center.Add(offset)
	c.Up = math.Vec3Up
}

func (c *OrbitCamera) Orbit(deltaYaw, deltaPitch float32) {
	c.Yaw += deltaYaw
	c.Pitch += deltaPitch
	c.UpdatePosition()
}

func (c *OrbitCamera) Zoom(delta float32) {
	c.Distance += delta
	if c.Distance < 0.1 {
		c.Distance = 0.1
	}
	c.UpdatePosition()
}
