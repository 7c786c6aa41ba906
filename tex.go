package stencil

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"text/template"

	"github.com/sirupsen/logrus"
)

var standaloneTemplate = template.Must(template.New("standalone").Parse(`\documentclass[tikz]{standalone}
\begin{document}
\input{ {{- .Filename -}} }
\end{document}
`))

// FixTex replaces every occurrence of each key of replacements in texFile
// with its value. Keys are applied in sorted order, so a value can be
// rewritten by a later key.
func FixTex(texFile string, replacements map[string]string) error {
	contents, err := os.ReadFile(texFile)
	if err != nil {
		return fmt.Errorf("could not read %q: %w", texFile, err)
	}

	keys := make([]string, 0, len(replacements))
	for k := range replacements {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	text := string(contents)
	for _, k := range keys {
		text = strings.ReplaceAll(text, k, replacements[k])
	}

	if err := os.WriteFile(texFile, []byte(text), 0o644); err != nil {
		return fmt.Errorf("could not write %q: %w", texFile, err)
	}
	return nil
}

// MakeStandalone writes a LaTeX document to standaloneName that does nothing
// but \input texFile, so the picture compiles on its own.
func MakeStandalone(texFile, standaloneName string) error {
	abs, err := filepath.Abs(texFile)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := standaloneTemplate.Execute(&buf, struct{ Filename string }{filepath.ToSlash(abs)}); err != nil {
		return err
	}
	if err := os.WriteFile(standaloneName, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("could not write %q: %w", standaloneName, err)
	}
	return nil
}

// Compiler runs a LaTeX compiler. The zero value runs pdflatex.
type Compiler struct {
	// Command is the binary to run, pdflatex when empty.
	Command string
	// Args go before the file name.
	Args []string
}

var DefaultCompiler = Compiler{
	Command: "pdflatex",
	Args:    []string{"-interaction=nonstopmode", "-halt-on-error"},
}

// CompileStandalone compiles texFile in its own directory, so the output
// lands next to it.
func (c Compiler) CompileStandalone(ctx context.Context, texFile string) error {
	command := c.Command
	if command == "" {
		command = "pdflatex"
	}

	dir, base := filepath.Split(texFile)
	args := append(append([]string{}, c.Args...), base)
	cmd := exec.CommandContext(ctx, command, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	logger := logrus.WithField("tag", "tex")
	logger.WithFields(logrus.Fields{
		"command": command,
		"file":    texFile,
	}).Debug("compiling")

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s failed: %w\n%s", command, base, err, out)
	}
	return nil
}

// SaveAsTexPDF writes canvas to <outname>_input.tex, applies replacements to
// it, wraps it in the standalone document <outname>.tex and compiles that to
// <outname>.pdf. Any extension on outname is dropped.
func (c Compiler) SaveAsTexPDF(ctx context.Context, canvas *Canvas, outname string, replacements map[string]string) error {
	abs, err := filepath.Abs(outname)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(abs, filepath.Ext(abs))
	inputName := base + "_input.tex"
	standaloneName := base + ".tex"

	if err := canvas.SaveAs(inputName); err != nil {
		return err
	}
	if err := FixTex(inputName, replacements); err != nil {
		return err
	}
	if err := MakeStandalone(inputName, standaloneName); err != nil {
		return err
	}
	if err := c.CompileStandalone(ctx, standaloneName); err != nil {
		return err
	}
	CleanPdflatexFiles(base)
	return nil
}

// CompileStandalone runs pdflatex on texFile.
func CompileStandalone(ctx context.Context, texFile string) error {
	return DefaultCompiler.CompileStandalone(ctx, texFile)
}

// SaveAsTexPDF saves canvas to a PDF through pdflatex.
func SaveAsTexPDF(ctx context.Context, canvas *Canvas, outname string, replacements map[string]string) error {
	return DefaultCompiler.SaveAsTexPDF(ctx, canvas, outname, replacements)
}

// CleanPdflatexFiles removes the .aux and .log files pdflatex leaves next to
// base. Files that cannot be removed are left alone.
func CleanPdflatexFiles(base string) {
	for _, ext := range []string{".aux", ".log"} {
		if err := os.Remove(base + ext); err != nil {
			logrus.WithField("tag", "tex").WithError(err).Debug("could not clean up")
		}
	}
}
