package grab

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

const eps = 1e-9

func yaw(deg float64) mgl64.Quat {
	return mgl64.QuatRotate(mgl64.DegToRad(deg), pose.WorldUp)
}

func at(x, y, z float64) pose.Pose {
	return pose.New(mgl64.Vec3{x, y, z}, mgl64.QuatIdent())
}

func assertFinite(t *testing.T, p pose.Pose) {
	t.Helper()
	require.True(t, p.IsValid(), "pose %v is not finite", p)
}

func TestParseKind(t *testing.T) {
	for k, name := range kindNames {
		got, err := ParseKind(name)
		require.NoError(t, err)
		assert.Equal(t, k, got)
		assert.Equal(t, name, k.String())
	}
	got, err := ParseKind("STAFF")
	require.NoError(t, err)
	assert.Equal(t, KindStaff, got)

	_, err = ParseKind("bow")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestStrategiesRejectTooFewInfluences(t *testing.T) {
	strategies := []Strategy{NewAverage(), NewScale(), NewStabilized(), NewStaff(), NewTwist()}
	for _, s := range strategies {
		t.Run(s.Kind().String(), func(t *testing.T) {
			_, err := s.Blend(nil)
			assert.ErrorIs(t, err, ErrTooFewInfluences)
			_, err = s.Blend([]pose.Pose{pose.Identity()})
			assert.ErrorIs(t, err, ErrTooFewInfluences)
		})
	}
}

// --- Average ---

func TestAverageIdentityLaw(t *testing.T) {
	p := pose.New(mgl64.Vec3{1, -2, 3.5}, mgl64.QuatRotate(1.3, mgl64.Vec3{0.3, 0.4, 0.5}.Normalize()))
	for _, m := range []SlerpMethod{SlerpAuto, SlerpBuiltin, SlerpManual} {
		for _, shortWay := range []bool{false, true} {
			a := NewAverage()
			a.Method = m
			a.ShortWay = shortWay

			res, err := a.Blend([]pose.Pose{p, p})
			require.NoError(t, err)
			assert.Equal(t, p, res.Pose, "method %v short way %v", m, shortWay)
			assert.Nil(t, res.Scale)
		}
	}
}

func TestAverageMidpoint(t *testing.T) {
	a := NewAverage()
	res, err := a.Blend([]pose.Pose{
		pose.New(mgl64.Vec3{0, 0, 0}, yaw(0)),
		pose.New(mgl64.Vec3{2, 4, -2}, yaw(90)),
	})
	require.NoError(t, err)
	assert.True(t, res.Pose.Position.ApproxEqualThreshold(mgl64.Vec3{1, 2, -1}, eps))
	assert.True(t, res.Pose.Rotation.OrientationEqualThreshold(yaw(45), eps), "rotation = %v", res.Pose.Rotation)
}

func TestAverageLerpParameter(t *testing.T) {
	a := NewAverage()
	a.Lerp = 0.25
	res, err := a.Blend([]pose.Pose{at(0, 0, 0), at(4, 0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 1, res.Pose.Position[0], eps)

	a.Lerp = 7 // clamped to 1
	res, err = a.Blend([]pose.Pose{at(0, 0, 0), at(4, 0, 0)})
	require.NoError(t, err)
	assert.InDelta(t, 4, res.Pose.Position[0], eps)
}

func TestAverageOnlyUsesFirstTwoInfluences(t *testing.T) {
	a := NewAverage()
	two, err := a.Blend([]pose.Pose{at(0, 0, 0), at(2, 0, 0)})
	require.NoError(t, err)
	three, err := a.Blend([]pose.Pose{at(0, 0, 0), at(2, 0, 0), at(100, 100, 100)})
	require.NoError(t, err)
	assert.Equal(t, two, three)
}

func TestAverageOppositeRotationsNeverNaN(t *testing.T) {
	base := mgl64.QuatRotate(0.6, mgl64.Vec3{1, 0, 0})
	for _, m := range []SlerpMethod{SlerpAuto, SlerpBuiltin, SlerpManual} {
		for _, tilt := range []float64{0, 1e-10, 1e-6, 1e-3} {
			a := NewAverage()
			a.Method = m
			a.ShortWay = true
			other := base.Mul(mgl64.QuatRotate(tilt, pose.WorldUp)).Scale(-1)

			res, err := a.Blend([]pose.Pose{
				pose.New(mgl64.Vec3{}, base),
				pose.New(mgl64.Vec3{}, other),
			})
			require.NoError(t, err)
			assertFinite(t, res.Pose)
			// q and -q are the same orientation, so the blend stays on it.
			assert.True(t, res.Pose.Rotation.OrientationEqualThreshold(base, 1e-6),
				"method %v tilt %v: %v", m, tilt, res.Pose.Rotation)
		}
	}
}

func TestAverageInversionToggles(t *testing.T) {
	q := yaw(60)
	a := NewAverage()
	a.InvertFirst = true
	a.InvertSecond = true
	res, err := a.Blend([]pose.Pose{pose.New(mgl64.Vec3{}, q), pose.New(mgl64.Vec3{}, q)})
	require.NoError(t, err)
	assert.True(t, res.Pose.Rotation.OrientationEqualThreshold(yaw(-60), eps))

	a = NewAverage()
	a.InvertResult = true
	res, err = a.Blend([]pose.Pose{pose.New(mgl64.Vec3{}, q), pose.New(mgl64.Vec3{}, q)})
	require.NoError(t, err)
	assert.True(t, res.Pose.Rotation.OrientationEqualThreshold(yaw(-60), eps))
}

func TestParseSlerpMethod(t *testing.T) {
	tests := []struct {
		in   string
		want SlerpMethod
	}{
		{"", SlerpAuto},
		{"auto", SlerpAuto},
		{"Builtin", SlerpBuiltin},
		{"manual", SlerpManual},
	}
	for _, tt := range tests {
		got, err := ParseSlerpMethod(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	_, err := ParseSlerpMethod("cubic")
	assert.Error(t, err)
}

// --- Scale ---

func TestScaleRoundTrip(t *testing.T) {
	s := NewScale()
	s.Multiplier = 1

	blend := func(distance float64) mgl64.Vec3 {
		t.Helper()
		res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(distance, 0, 0)})
		require.NoError(t, err)
		require.NotNil(t, res.Scale)
		return *res.Scale
	}

	assert.Equal(t, mgl64.Vec3{1, 1, 1}, blend(0.5))
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, blend(1.0))
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, blend(0.5))
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, s.LocalScale)
}

func TestScaleMultiplierAndNonUniformStart(t *testing.T) {
	s := NewScale()
	s.LocalScale = mgl64.Vec3{1, 2, 3}
	s.Multiplier = 0.5

	_, err := s.Blend([]pose.Pose{at(0, 0, 0), at(0, 1, 0)})
	require.NoError(t, err)
	res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(0, 4, 0)})
	require.NoError(t, err)
	assert.True(t, res.Scale.ApproxEqualThreshold(mgl64.Vec3{2, 4, 6}, eps), "scale = %v", *res.Scale)
}

func TestScaleZeroInitialDistanceKeepsFactorOne(t *testing.T) {
	s := NewScale()
	_, err := s.Blend([]pose.Pose{at(1, 1, 1), at(1, 1, 1)})
	require.NoError(t, err)
	res, err := s.Blend([]pose.Pose{at(1, 1, 1), at(5, 1, 1)})
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 1, 1}, *res.Scale)
}

func TestScaleSelectionHooks(t *testing.T) {
	s := NewScale()
	blendAt := func(d float64) mgl64.Vec3 {
		res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(d, 0, 0)})
		require.NoError(t, err)
		return *res.Scale
	}

	blendAt(1)
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, blendAt(2))

	// A new secondary measures from here.
	s.OnSelectEnter(SelectionChange{Secondary: true})
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, blendAt(3))
	assert.Equal(t, mgl64.Vec3{4, 4, 4}, blendAt(6))

	// A primary enter does not rearm; an exit clears a pending capture.
	s.OnSelectEnter(SelectionChange{Secondary: false})
	s.OnSelectEnter(SelectionChange{Secondary: true})
	s.OnSelectExit(SelectionChange{Secondary: true})
	assert.Equal(t, mgl64.Vec3{2, 2, 2}, blendAt(3))
}

func TestScaleWithoutAveraging(t *testing.T) {
	s := NewScale()
	s.AveragePoses = false
	p0 := pose.New(mgl64.Vec3{1, 2, 3}, yaw(20))
	res, err := s.Blend([]pose.Pose{p0, at(4, 2, 3)})
	require.NoError(t, err)
	assert.Equal(t, p0, res.Pose)
}

// --- Stabilized ---

func TestStabilizedStartsAtWorldUp(t *testing.T) {
	assert.Equal(t, pose.WorldUp, NewStabilized().LastUp())
}

func TestStabilizedLevelHands(t *testing.T) {
	s := NewStabilized()
	res, err := s.Blend([]pose.Pose{at(1, 1, 1), at(1, 1, 3)})
	require.NoError(t, err)

	assert.Equal(t, mgl64.Vec3{1, 1, 1}, res.Pose.Position)
	assert.True(t, res.Pose.Forward().ApproxEqualThreshold(pose.WorldForward, eps), "forward = %v", res.Pose.Forward())
	assert.True(t, res.Pose.Up().ApproxEqualThreshold(pose.WorldUp, eps), "up = %v", res.Pose.Up())
}

func TestStabilizedYawSweepKeepsHistory(t *testing.T) {
	s := NewStabilized()
	prev := s.LastUp()
	for deg := 0.0; deg <= 360; deg += 2 {
		r := mgl64.DegToRad(deg)
		res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(math.Sin(r), 0, math.Cos(r))})
		require.NoError(t, err)
		up := res.Pose.Up()
		assert.True(t, up.ApproxEqualThreshold(prev, 1e-9), "deg %v: up %v, history %v", deg, up, prev)
		assert.Greater(t, up.Dot(prev), 0.0)
		prev = up
	}
}

func TestStabilizedPitchSweepNeverFlips(t *testing.T) {
	s := NewStabilized()
	prev := s.LastUp()
	for deg := 0.0; deg <= 180; deg += 1 {
		r := mgl64.DegToRad(deg)
		// The secondary swings over the primary's head and down the far side.
		res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(0, math.Sin(r), math.Cos(r))})
		require.NoError(t, err)
		assertFinite(t, res.Pose)
		up := res.Pose.Up()
		assert.Greater(t, up.Dot(prev), 0.0, "deg %v: up %v flipped from %v", deg, up, prev)
		assert.InDelta(t, 0, up.Dot(res.Pose.Forward()), 1e-9)
		prev = up
	}
}

func TestStabilizedHistoryZoneUsesLastUp(t *testing.T) {
	s := NewStabilized()
	tilted := mgl64.Vec3{0, 1, -1}.Normalize()
	s.lastUp = tilted

	// Forward is nearly world up, so |up·forward| is in the history zone.
	res, err := s.Blend([]pose.Pose{at(0, 0, 0), at(0, 1, 0.05)})
	require.NoError(t, err)

	fwd := res.Pose.Forward()
	want := tilted.Sub(fwd.Mul(tilted.Dot(fwd))).Normalize()
	assert.True(t, res.Pose.Up().ApproxEqualThreshold(want, 1e-9), "up = %v, want %v", res.Pose.Up(), want)
}

func TestStabilizedReseedsFromPrimary(t *testing.T) {
	s := NewStabilized()
	primary := pose.New(mgl64.Vec3{}, mgl64.QuatRotate(math.Pi/2, pose.WorldForward))

	s.OnSelectEnter(SelectionChange{Secondary: false, Primary: primary})
	assert.Equal(t, pose.WorldUp, s.LastUp())

	s.OnSelectEnter(SelectionChange{Secondary: true, Primary: primary})
	assert.True(t, s.LastUp().ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, eps), "lastUp = %v", s.LastUp())

	s.lastUp = pose.WorldUp
	s.OnSelectExit(SelectionChange{Secondary: true, Primary: primary})
	assert.True(t, s.LastUp().ApproxEqualThreshold(mgl64.Vec3{-1, 0, 0}, eps))
}

// --- Staff ---

func TestStaffCentersOnFirstBlend(t *testing.T) {
	s := NewStaff()
	p0, p1 := at(0, 0, -0.2), at(0, 0, 0.2)
	res, err := s.Blend([]pose.Pose{p0, p1})
	require.NoError(t, err)

	assert.Equal(t, p0, res.Pose)
	assert.InDelta(t, 0, s.Center(), eps)
	require.NotNil(t, res.Attach)
	assert.True(t, res.Attach.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, -0.2}, eps), "attach = %v", res.Attach.Position)
	assert.True(t, res.Attach.Rotation.OrientationEqualThreshold(mgl64.QuatIdent(), eps))
}

func TestStaffReversedHands(t *testing.T) {
	s := NewStaff()
	res, err := s.Blend([]pose.Pose{at(0, 0, 0.2), at(0, 0, -0.2)})
	require.NoError(t, err)
	assert.True(t, res.Attach.Position.ApproxEqualThreshold(mgl64.Vec3{0, 0, 0.2}, eps), "attach = %v", res.Attach.Position)
	assert.True(t, res.Attach.Rotation.OrientationEqualThreshold(mgl64.QuatIdent(), eps))
}

func TestStaffCenterPersistsAndClamps(t *testing.T) {
	tests := []struct {
		name       string
		start      [2]float64
		spread     [2]float64
		wantCenter float64
	}{
		{"inside span", [2]float64{-0.1, 0.1}, [2]float64{0.3, 0.9}, 0},
		{"past top", [2]float64{0.7, 0.9}, [2]float64{0.5, 1.1}, 0.7},
		{"past bottom", [2]float64{-0.9, -0.7}, [2]float64{-1.1, -0.5}, -0.7},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStaff()
			_, err := s.Blend([]pose.Pose{at(0, 0, tt.start[0]), at(0, 0, tt.start[1])})
			require.NoError(t, err)

			_, err = s.Blend([]pose.Pose{at(0, 0, tt.spread[0]), at(0, 0, tt.spread[1])})
			require.NoError(t, err)
			assert.InDelta(t, tt.wantCenter, s.Center(), 1e-9)
		})
	}
}

func TestStaffResetAndHooks(t *testing.T) {
	s := NewStaff()
	_, err := s.Blend([]pose.Pose{at(0, 0, 0.1), at(0, 0, 0.3)})
	require.NoError(t, err)
	assert.InDelta(t, 0.2, s.Center(), eps)

	s.OnSelectEnter(SelectionChange{})
	assert.True(t, math.IsInf(s.Center(), 1))

	// A secondary leaving leaves the center alone.
	s.OnSelectExit(SelectionChange{Secondary: true, Influences: []pose.Pose{at(0, 0, 0.5), at(0, 0, 0.7)}})
	assert.True(t, math.IsInf(s.Center(), 1))

	// The primary leaving realigns with the hands swapped.
	s.OnSelectExit(SelectionChange{Secondary: false, Influences: []pose.Pose{at(0, 0, 0.5), at(0, 0, 0.7)}})
	assert.InDelta(t, 0.6, s.Center(), eps)
}

func TestStaffUsesObjectFrame(t *testing.T) {
	s := NewStaff()
	s.SetFrame(pose.New(mgl64.Vec3{0, 0, 10}, yaw(90)))
	// The staff axis now runs along world +X from z = 10.
	_, err := s.Blend([]pose.Pose{at(0.2, 0, 10), at(0.6, 0, 10)})
	require.NoError(t, err)
	assert.InDelta(t, 0.4, s.Center(), eps)
}

// --- Twist ---

func TestTwistAlignsUpWithHands(t *testing.T) {
	tests := []struct {
		name      string
		secondary mgl64.Vec3
		wantUp    mgl64.Vec3
	}{
		{"above", mgl64.Vec3{0, 1, 0}, pose.WorldUp},
		{"below flips axis", mgl64.Vec3{0, -1, 0}, pose.WorldUp},
		{"diagonal", mgl64.Vec3{1, 1, 0}, mgl64.Vec3{1, 1, 0}.Normalize()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tw := NewTwist()
			res, err := tw.Blend([]pose.Pose{at(0, 0, 0), pose.New(tt.secondary, mgl64.QuatIdent())})
			require.NoError(t, err)
			assertFinite(t, res.Pose)
			assert.Equal(t, mgl64.Vec3{}, res.Pose.Position)
			assert.True(t, res.Pose.Up().ApproxEqualThreshold(tt.wantUp, 1e-9), "up = %v", res.Pose.Up())
			require.NotNil(t, res.Attach)
		})
	}
}

func TestTwistControlModes(t *testing.T) {
	// Primary faces +X at the bottom, secondary faces +Z on top.
	primary := pose.New(mgl64.Vec3{0, 0, 0}, yaw(90))
	secondary := at(0, 1, 0)

	tests := []struct {
		mode    ControlMode
		wantDeg float64 // forward angle from +Z toward +X
	}{
		{ControlTop, 22.5},
		{ControlBottom, 67.5},
		{ControlFirst, 67.5},
		{ControlSecond, 22.5},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			tw := NewTwist()
			tw.Mode = tt.mode
			res, err := tw.Blend([]pose.Pose{primary, secondary})
			require.NoError(t, err)

			r := mgl64.DegToRad(tt.wantDeg)
			want := mgl64.Vec3{math.Sin(r), 0, math.Cos(r)}
			assert.True(t, res.Pose.Forward().ApproxEqualThreshold(want, 1e-9), "forward = %v, want %v", res.Pose.Forward(), want)
		})
	}
}

func TestTwistCapturesAttachOnSecondaryEnter(t *testing.T) {
	tw := NewTwist()
	primary := pose.New(mgl64.Vec3{}, yaw(90))
	secondary := pose.New(mgl64.Vec3{0, 1, 0}, yaw(90))

	tw.OnSelectEnter(SelectionChange{Secondary: true, Primary: primary, Influences: []pose.Pose{primary, secondary}})
	assert.True(t, tw.AttachRotation().OrientationEqualThreshold(yaw(90), 1e-9), "attach = %v", tw.AttachRotation())

	tw.Reset()
	assert.Equal(t, mgl64.QuatIdent(), tw.AttachRotation())

	for _, m := range []string{"", "top", "Bottom", "first", "second"} {
		_, err := ParseControlMode(m)
		assert.NoError(t, err)
	}
	_, err := ParseControlMode("middle")
	assert.Error(t, err)
}
