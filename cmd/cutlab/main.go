// Command cutlab runs cut scripts into glTF fragments and replays
// recorded grab and cutter sessions.
//
// Usage:
//
//	cutlab scene [-config f] [-o out.gltf] [-binary] [-debug] script.cut
//	cutlab grab [-config f] session.yaml
//	cutlab cut [-config f] [-o out.glb] session.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/emilyslouie/xri-two-hands/pkg/config"
	"github.com/emilyslouie/xri-two-hands/pkg/export"
	"github.com/emilyslouie/xri-two-hands/pkg/kernel"
)

const usage = `usage:
  cutlab scene [-config f] [-o out.gltf] [-binary] [-debug] script.cut
  cutlab grab [-config f] session.yaml
  cutlab cut [-config f] [-o out.glb] session.yaml
`

// errScript marks a run that failed because of script errors already
// reported to stderr.
var errScript = errors.New("script has errors")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "scene":
		err = runScene(ctx, args[1:], stdout, stderr)
	case "grab":
		err = runGrab(args[1:], stdout, stderr)
	case "cut":
		err = runCut(ctx, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "cutlab: unknown command %q\n%s", args[0], usage)
		return 2
	}

	switch {
	case err == nil:
		return 0
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, errScript):
		return 1
	default:
		fmt.Fprintf(stderr, "cutlab: %v\n", err)
		return 1
	}
}

func newFlagSet(name string, stderr io.Writer) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	cfgPath := fs.String("config", "", "YAML settings file")
	return fs, cfgPath
}

func oneArg(fs *flag.FlagSet, what string) (string, error) {
	if fs.NArg() != 1 {
		return "", errors.Errorf("%s: expected one %s, got %d arguments", fs.Name(), what, fs.NArg())
	}
	return fs.Arg(0), nil
}

// evaluateFile runs a script and reports its errors and warnings to
// stderr as path:line:col lines.
func evaluateFile(ctx context.Context, app *App, path string, stderr io.Writer) (SceneResult, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return SceneResult{}, errors.Wrap(err, "read script")
	}
	res, err := app.Evaluate(ctx, string(src))
	if err != nil {
		return SceneResult{}, errors.Wrap(err, path)
	}
	for _, w := range res.Warnings {
		fmt.Fprintf(stderr, "%s:%d:%d: warning: %s\n", path, w.Line, w.Col, w.Message)
	}
	for _, e := range res.Errors {
		fmt.Fprintf(stderr, "%s:%d:%d: %s\n", path, e.Line, e.Col, e.Message)
	}
	if len(res.Errors) > 0 {
		return res, errScript
	}
	return res, nil
}

func writeMeshes(out string, binary bool, meshes []*kernel.Mesh, stdout io.Writer) error {
	if out == "" {
		return export.WriteGLTF(stdout, meshes, binary)
	}
	return export.SaveGLTF(out, meshes)
}

func runScene(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cfgPath := newFlagSet("scene", stderr)
	out := fs.String("o", "", "output file, .glb for binary; stdout when empty")
	binary := fs.Bool("binary", false, "write binary glTF to stdout")
	debug := fs.Bool("debug", false, "dump the scene graph to stderr")
	if err := fs.Parse(args); err != nil {
		return err
	}
	script, err := oneArg(fs, "script")
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		return err
	}
	app, err := initializeApp(cfg)
	if err != nil {
		return err
	}
	defer app.log.Sync()

	res, err := evaluateFile(ctx, app, script, stderr)
	if err != nil {
		return err
	}
	if *debug {
		spew.Fdump(stderr, res.Graph)
	}
	return writeMeshes(*out, *binary, res.Meshes, stdout)
}

func runGrab(args []string, stdout, stderr io.Writer) error {
	fs, cfgPath := newFlagSet("grab", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs, "session")
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		return err
	}
	log, err := provideLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	strategy, err := cfg.Strategy()
	if err != nil {
		return err
	}
	session, err := loadGrabSession(path)
	if err != nil {
		return err
	}
	return replayGrab(session, strategy, log, stdout)
}

func runCut(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs, cfgPath := newFlagSet("cut", stderr)
	out := fs.String("o", "", "write surviving fragments to this glTF file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path, err := oneArg(fs, "session")
	if err != nil {
		return err
	}

	cfg, err := config.LoadFile(*cfgPath)
	if err != nil {
		return err
	}
	app, err := initializeApp(cfg)
	if err != nil {
		return err
	}
	defer app.log.Sync()

	session, err := loadCutSession(path)
	if err != nil {
		return err
	}
	res, err := evaluateFile(ctx, app, session.Scene, stderr)
	if err != nil {
		return err
	}

	fragments, err := replayCut(session, res.Meshes, app.log, stdout, cfg.CutterOptions()...)
	if err != nil {
		return err
	}
	app.log.Info("cut session replayed",
		zap.Int("frames", len(session.Frames)),
		zap.Int("fragments", len(fragments)),
	)
	if *out == "" {
		return nil
	}
	return export.SaveGLTF(*out, fragments)
}
