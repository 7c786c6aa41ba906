package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/cactusdynamics/stencil"
	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"
)

type globalOptions struct {
	Verbose bool   `short:"v" long:"verbose" description:"Debug logging"`
	Config  string `long:"config" description:"YAML file with color schemes and option defaults"`
}

type outputOptions struct {
	Out     string   `long:"out" short:"o" description:"Output file, the extension picks the format" required:"true"`
	Key     string   `long:"key" description:"Only overlay this object"`
	TexPDF  bool     `long:"tex-pdf" description:"Write through pdflatex to a PDF"`
	Replace []string `long:"replace" description:"old=new substitution in the tex output, may be repeated"`
}

type previewOptions struct {
	Key       string        `long:"key" description:"Only overlay this object"`
	Addr      string        `long:"addr" default:"localhost:5274" description:"Address to serve on"`
	Interval  time.Duration `long:"interval" default:"500ms" description:"Wait this long after a file change before redrawing"`
	NoBrowser bool          `long:"no-browser" description:"Do not open a browser"`
}

const usage = `usage: stencil [-v] [--config FILE] COMMAND [ARGS]

commands:
  keys FILE...                 list the objects in each file
  overlay [params] -o OUT FILE...  overlay the objects the files share
  stack [params] -o OUT FILE   stack every histogram in a file
  preview [params] FILE...     serve an overlay and redraw it when the files change

Run "stencil COMMAND --help" for the parameters of a command.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		logrus.WithError(err).Error("stencil failed")
		os.Exit(1)
	}
}

// run executes one command. Help requested with --help is written to stdout
// and comes back as a flags.ErrHelp error.
func run(args []string, stdout io.Writer) error {
	err := dispatch(args, stdout)
	if flags.WroteHelp(err) {
		fmt.Fprintln(stdout, err)
	}
	return err
}

func dispatch(args []string, stdout io.Writer) error {
	var global globalOptions
	parser := flags.NewNamedParser("stencil", flags.HelpFlag|flags.PassAfterNonOption)
	if _, err := parser.AddGroup("Global Options", "", &global); err != nil {
		return err
	}
	rest, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if global.Verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	cfg := &stencil.Config{}
	if global.Config != "" {
		cfg, err = stencil.LoadConfig(global.Config)
		if err != nil {
			return err
		}
		if err := cfg.RegisterSchemes(); err != nil {
			return err
		}
	}

	if len(rest) == 0 {
		fmt.Fprint(stdout, usage)
		return errors.New("no command given")
	}

	command, cmdArgs := rest[0], rest[1:]
	switch command {
	case "keys":
		return runKeys(cmdArgs, stdout)
	case "overlay":
		return runOverlay(cfg, cmdArgs)
	case "stack":
		return runStack(cfg, cmdArgs)
	case "preview":
		return runPreview(cfg, cmdArgs)
	default:
		fmt.Fprint(stdout, usage)
		return fmt.Errorf("unknown command %q", command)
	}
}

func runKeys(files []string, stdout io.Writer) error {
	for _, fn := range files {
		objs, err := stencil.GrabAllObjs(fn)
		if err != nil {
			return err
		}
		keys, err := stencil.Keys(fn)
		if err != nil {
			return err
		}

		fmt.Fprintf(stdout, "%s:\n", fn)
		for i, obj := range objs {
			mark := ""
			if stencil.IsHistogram(obj) {
				mark = " (histogram)"
			}
			fmt.Fprintf(stdout, "  %s  %s%s\n", keys[i], obj.Class(), mark)
		}
	}
	return nil
}

// parseCommand parses the overlay parameters, starting from the defaults and
// the config file, next to extra.
func parseCommand(name string, cfg *stencil.Config, args []string, extra interface{}) (stencil.OverlayOptions, []string, error) {
	opts := stencil.DefaultOverlayOptions()
	if err := cfg.ApplyOverlay(&opts); err != nil {
		return opts, nil, err
	}

	cp, err := stencil.NewConstructorParser(name, &opts, extra)
	if err != nil {
		return opts, nil, err
	}
	rest, err := cp.Parse(args)
	if err != nil {
		return opts, nil, err
	}

	construct, other := cp.Split()
	logrus.WithField("tag", "cmd").WithFields(logrus.Fields{
		"command": name,
		"params":  construct,
		"options": other,
	}).Debug("parsed arguments")
	return opts, rest, nil
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// buildOverlay puts the object called key from every file on one overlay,
// named after the file it came from.
func buildOverlay(opts stencil.OverlayOptions, files []string, key string) (*stencil.Overlay, error) {
	o, err := stencil.NewOverlay(opts)
	if err != nil {
		return nil, err
	}
	for _, fn := range files {
		obj, err := stencil.GrabObj(fn, key)
		if err != nil {
			return nil, err
		}
		elem, err := stencil.FromObject(obj)
		if err != nil {
			return nil, fmt.Errorf("%s in %s: %w", key, fn, err)
		}
		o.AddObj(stem(fn), elem, stencil.Entry{})
	}
	return o, nil
}

func parseReplacements(pairs []string) (map[string]string, error) {
	replacements := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		from, to, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("replacement %q is not old=new", pair)
		}
		replacements[from] = to
	}
	return replacements, nil
}

func save(cfg *stencil.Config, canvas *stencil.Canvas, out outputOptions) error {
	if !out.TexPDF {
		return canvas.SaveAs(out.Out)
	}
	replacements, err := parseReplacements(out.Replace)
	if err != nil {
		return err
	}
	return cfg.TexCompiler().SaveAsTexPDF(context.Background(), canvas, out.Out, replacements)
}

// outName gives every key its own output file when there is more than one.
func outName(out, key string, many bool) string {
	if !many {
		return out
	}
	ext := filepath.Ext(out)
	return strings.TrimSuffix(out, ext) + "_" + strings.ReplaceAll(key, "/", "_") + ext
}

func runOverlay(cfg *stencil.Config, args []string) error {
	var out outputOptions
	opts, files, err := parseCommand("overlay", cfg, args, &out)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("overlay needs at least one file")
	}

	keys := []string{out.Key}
	if out.Key == "" {
		keys, err = stencil.CommonKeys(files)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return errors.New("the files have no objects in common")
		}
	}

	for _, key := range keys {
		o, err := buildOverlay(opts, files, key)
		if err != nil {
			return err
		}
		canvas, err := o.Draw()
		if err != nil {
			return err
		}
		target := out
		target.Out = outName(out.Out, key, len(keys) > 1)
		if err := save(cfg, canvas, target); err != nil {
			return err
		}
		logrus.WithField("tag", "cmd").WithField("out", target.Out).Info("wrote overlay")
	}
	return nil
}

func runStack(cfg *stencil.Config, args []string) error {
	var out outputOptions
	opts, files, err := parseCommand("stack", cfg, args, &out)
	if err != nil {
		return err
	}
	if len(files) != 1 {
		return errors.New("stack takes exactly one file")
	}
	fn := files[0]

	keys, err := stencil.Keys(fn)
	if err != nil {
		return err
	}
	objs, err := stencil.GrabAllObjs(fn)
	if err != nil {
		return err
	}

	stack, err := stencil.NewHistStack(opts)
	if err != nil {
		return err
	}
	for i, obj := range objs {
		if !stencil.IsHistogram(obj) {
			logrus.WithField("tag", "cmd").WithField("key", keys[i]).Debug("skipping, not a histogram")
			continue
		}
		elem, err := stencil.FromObject(obj)
		if err != nil {
			return err
		}
		h, ok := elem.(*stencil.Hist)
		if !ok {
			continue
		}
		stack.AddHist(keys[i], h, "", "")
	}

	o, err := stencil.NewOverlay(opts)
	if err != nil {
		return err
	}
	if err := o.AddStack(stem(fn), stack); err != nil {
		return err
	}
	canvas, err := o.Draw()
	if err != nil {
		return err
	}
	return save(cfg, canvas, out)
}

func runPreview(cfg *stencil.Config, args []string) error {
	var popts previewOptions
	opts, files, err := parseCommand("preview", cfg, args, &popts)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return errors.New("preview needs at least one file")
	}

	render := func(files []string) (*stencil.Overlay, error) {
		key := popts.Key
		if key == "" {
			keys, err := stencil.CommonKeys(files)
			if err != nil {
				return nil, err
			}
			if len(keys) == 0 {
				return nil, errors.New("the files have no objects in common")
			}
			key = keys[0]
		}
		return buildOverlay(opts, files, key)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	source := stencil.NewPreviewSource(files, render, popts.Interval)
	defer source.Close()
	broadcaster := stencil.NewFrameBroadcaster(source)
	broadcaster.Start(ctx)

	server := stencil.NewHttpServer(broadcaster, popts.Addr)
	err = server.Run(ctx, !popts.NoBrowser)
	broadcaster.Wait()
	if err != nil {
		return err
	}
	if err := broadcaster.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
