package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilyslouie/xri-two-hands/pkg/config"
	"github.com/emilyslouie/xri-two-hands/pkg/pose"
)

const examplesDir = "../../examples"

// writeConfig writes a quiet, coarse config for fast pipeline runs.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cutlab.yaml")
	src := "log:\n  level: error\nkernel:\n  mesh_cells: 16\n" + extra
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func jsonLines[T any](t *testing.T, out string) []T {
	t.Helper()
	var recs []T
	sc := bufio.NewScanner(bytes.NewReader([]byte(out)))
	for sc.Scan() {
		var r T
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r), sc.Text())
		recs = append(recs, r)
	}
	return recs
}

func nodeNames(t *testing.T, path string) []string {
	t.Helper()
	doc, err := gltf.Open(path)
	require.NoError(t, err)
	var names []string
	for _, n := range doc.Nodes {
		names = append(names, n.Name)
	}
	return names
}

func TestRunUsage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "usage:")

	code, _, stderr = runCLI(t, "paint")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, `unknown command "paint"`)

	code, stdout, _ := runCLI(t, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout, "cutlab scene")

	code, _, stderr = runCLI(t, "scene")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "expected one script")
}

func TestRunScene(t *testing.T) {
	cfg := writeConfig(t, "")
	out := filepath.Join(t.TempDir(), "yard.glb")

	code, _, stderr := runCLI(t, "scene", "-config", cfg, "-o", out, filepath.Join(examplesDir, "log.cut"))
	require.Equal(t, 0, code, stderr)

	assert.ElementsMatch(t, []string{"stump", "log++", "log+-", "log-+", "log--"}, nodeNames(t, out))
}

func TestRunSceneToStdout(t *testing.T) {
	cfg := writeConfig(t, "")
	code, stdout, stderr := runCLI(t, "scene", "-config", cfg, filepath.Join(examplesDir, "crate.cut"))
	require.Equal(t, 0, code, stderr)

	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(bytes.NewReader([]byte(stdout))).Decode(doc))
	// Five boards and a handle, with both fronts halved.
	assert.Len(t, doc.Nodes, 8)
}

func TestRunSceneDebugDumpsGraph(t *testing.T) {
	cfg := writeConfig(t, "")
	code, _, stderr := runCLI(t, "scene", "-config", cfg, "-debug", "-binary", filepath.Join(examplesDir, "log.cut"))
	require.Equal(t, 0, code, stderr)
	assert.Contains(t, stderr, "SceneGraph")
	assert.Contains(t, stderr, "CutOrder")
}

func TestRunSceneReportsScriptErrors(t *testing.T) {
	cfg := writeConfig(t, "")
	script := filepath.Join(t.TempDir(), "bad.cut")
	require.NoError(t, os.WriteFile(script, []byte("(defpiece \"x\" (box))\n"), 0o644))

	code, stdout, stderr := runCLI(t, "scene", "-config", cfg, script)
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "bad.cut:")
}

func TestRunSceneBadConfig(t *testing.T) {
	cfg := writeConfig(t, "grab:\n  strategy: juggle\n")
	code, _, stderr := runCLI(t, "scene", "-config", cfg, filepath.Join(examplesDir, "log.cut"))
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "grab.strategy")
}

func TestRunGrabAverage(t *testing.T) {
	cfg := writeConfig(t, "grab:\n  strategy: average\n")
	code, stdout, stderr := runCLI(t, "grab", "-config", cfg, filepath.Join(examplesDir, "two_hands.yaml"))
	require.Equal(t, 0, code, stderr)

	recs := jsonLines[TickRecord](t, stdout)
	require.Len(t, recs, 4)

	states := []string{recs[0].State, recs[1].State, recs[2].State, recs[3].State}
	assert.Equal(t, []string{"single", "multi", "multi", "single"}, states)
	assert.Equal(t, 2, recs[1].Influences)

	assert.InDeltaSlice(t, []float64{-0.5, 1, 0}, recs[0].Position[:], 1e-9)
	assert.InDeltaSlice(t, []float64{0, 1, 0}, recs[2].Position[:], 1e-9)
	assert.InDeltaSlice(t, []float64{1, 1, 0}, recs[3].Position[:], 1e-9)
	assert.Nil(t, recs[2].Scale)
}

func TestRunGrabScale(t *testing.T) {
	cfg := writeConfig(t, "grab:\n  strategy: scale\n")
	code, stdout, stderr := runCLI(t, "grab", "-config", cfg, filepath.Join(examplesDir, "two_hands.yaml"))
	require.Equal(t, 0, code, stderr)

	recs := jsonLines[TickRecord](t, stdout)
	require.Len(t, recs, 4)
	require.NotNil(t, recs[1].Scale)
	require.NotNil(t, recs[2].Scale)
	assert.InDeltaSlice(t, []float64{1, 1, 1}, recs[1].Scale[:], 1e-9)
	assert.InDeltaSlice(t, []float64{2, 2, 2}, recs[2].Scale[:], 1e-9)
}

func TestRunGrabRejectsBadSession(t *testing.T) {
	cfg := writeConfig(t, "")
	session := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(session, []byte("frames:\n  - events:\n      - {id: left, op: exit}\n"), 0o644))

	code, _, stderr := runCLI(t, "grab", "-config", cfg, session)
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "frame 0")
	assert.Contains(t, stderr, "not selecting")
}

func TestRunCut(t *testing.T) {
	cfg := writeConfig(t, "")
	out := filepath.Join(t.TempDir(), "sawn.glb")

	code, stdout, stderr := runCLI(t, "cut", "-config", cfg, "-o", out, filepath.Join(examplesDir, "log_cut.yaml"))
	require.Equal(t, 0, code, stderr)

	recs := jsonLines[CutRecord](t, stdout)
	// The stump and the four log quarters all sit within reach of the blade.
	require.Len(t, recs, 5)
	for _, r := range recs {
		assert.Equal(t, 2, r.Frame)
	}

	names := nodeNames(t, out)
	// Every quarter splits into a top and a bottom; the stump lies below the blade.
	assert.Len(t, names, 9)
	assert.Contains(t, names, "log++")
	assert.Contains(t, names, "log++.1")
	assert.Contains(t, names, "stump")
	assert.NotContains(t, names, "stump.1")
}

func TestPoseSpec(t *testing.T) {
	p, err := PoseSpec{Position: [3]float64{1, 2, 3}, Euler: []float64{0, 90, 0}}.Pose()
	require.NoError(t, err)
	assert.Equal(t, mgl64.Vec3{1, 2, 3}, p.Position)
	assert.True(t, p.Forward().ApproxEqualThreshold(pose.WorldRight, 1e-9), "forward = %v", p.Forward())

	p, err = PoseSpec{Rotation: []float64{0, 0, 0, 2}}.Pose()
	require.NoError(t, err)
	assert.Equal(t, mgl64.QuatIdent(), p.Rotation)

	_, err = PoseSpec{Rotation: []float64{0, 0, 1}}.Pose()
	assert.Error(t, err)
	_, err = PoseSpec{Rotation: []float64{0, 0, 0, 0}}.Pose()
	assert.Error(t, err)
	_, err = PoseSpec{Euler: []float64{1}}.Pose()
	assert.Error(t, err)
}

func TestEulerOrder(t *testing.T) {
	// Pitch is applied before yaw, so the pitched-down forward ignores the yaw.
	q := eulerToQuat(90, 90, 0)
	got := q.Rotate(pose.WorldForward)
	assert.True(t, got.ApproxEqualThreshold(mgl64.Vec3{0, -1, 0}, 1e-9), "forward = %v", got)
	q = eulerToQuat(0, 90, 90)
	got = q.Rotate(pose.WorldRight)
	assert.True(t, got.ApproxEqualThreshold(pose.WorldUp, 1e-9), "right = %v", got)
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := config.LoadFile(filepath.Join(examplesDir, "cutlab.yaml"))
	require.NoError(t, err)
	s, err := cfg.Strategy()
	require.NoError(t, err)
	assert.Equal(t, "scale", s.Kind().String())

	app, err := initializeApp(cfg)
	require.NoError(t, err)
	assert.NotNil(t, app.engine)
	assert.NotNil(t, app.kernel)
}

func TestAppEvaluateHonorsCancelledContext(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "error"
	app, err := initializeApp(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := app.Evaluate(ctx, `(defpiece "x" (sphere :radius 1)) (scene "s" (piece "x"))`)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, res.Graph)
}
