// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/dbtdiagrams

// dbtdiagrams renders mermaid ERDs from dbt artifacts and embeds them into dbt docs.
package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/sirupsen/logrus"

	"github.com/woozymasta/dbtdiagrams"
)

const staticFlag = "--static"

var (
	Version    = "dev"
	Commit     = "unknown"
	BuildTime  = time.Unix(0, 0)
	URL        = "https://github.com/woozymasta/dbtdiagrams"
	_buildTime string
)

// cliOptions describes dbtdiagrams CLI flags and subcommands.
type cliOptions struct {
	Debug   bool `short:"d" long:"debug" description:"Enable debug logging"`
	LogJSON bool `long:"log-json" description:"Write logs as JSON"`

	Version  versionCommand  `command:"version" description:"Print version information"`
	Render   renderCommand   `command:"render" alias:"render-erds" description:"Render ERDs from dbt manifest and catalog"`
	Template templateCommand `command:"template" description:"Print built-in diagram template"`
	Docs     docsCommand     `command:"docs" description:"Add rendered ERDs to dbt docs"`
}

// artifactFlags selects input artifacts.
type artifactFlags struct {
	TargetDir string `short:"t" long:"dbt-target-dir" description:"Directory containing dbt manifest and optional catalog file(s)"`
	Manifest  string `short:"m" long:"manifest" description:"Path to manifest.json file"`
	Catalog   string `short:"c" long:"catalog" description:"Optional path to catalog.json file"`
}

// diagramFlags groups diagram assembly flags.
type diagramFlags struct {
	NoColumns    bool   `long:"no-columns" description:"Render entities without column details"`
	TemplatePath string `long:"template-file" description:"Path to custom diagram template (.gotmpl)"`
}

// outputFlags groups output writing flags.
type outputFlags struct {
	Format    string `short:"f" long:"format" description:"Output format" choice:"mmd" choice:"md" choice:"svg" default:"mmd"`
	OutputDir string `short:"o" long:"output-dir" description:"Output directory" default:"."`
	Stdout    bool   `long:"stdout" description:"Print diagrams to stdout instead of writing files (mmd and md only)"`
	Renderer  string `long:"renderer" description:"mermaid-cli executable used for svg output" default:"mmdc"`
	Workers   int    `short:"j" long:"workers" description:"Concurrent svg renders (0 uses CPU count)" default:"0"`
}

// renderCommand renders ERDs to files.
type renderCommand struct {
	runner *cliRunner

	Artifacts    artifactFlags `group:"Artifacts"`
	DiagramFlags diagramFlags  `group:"Diagram"`
	OutputFlags  outputFlags   `group:"Output"`
	Watch        bool          `short:"w" long:"watch" description:"Render again whenever input artifacts change"`
}

// Execute runs render subcommand.
func (command *renderCommand) Execute(_ []string) error {
	command.runner.initLogging()
	return command.runner.runRender(command.Artifacts, command.DiagramFlags, command.OutputFlags, command.Watch)
}

// templateCommand exports built-in diagram template.
type templateCommand struct {
	runner *cliRunner
	Args   struct {
		Output string `positional-arg-name:"output" description:"Output template file path (optional; stdout when omitted)"`
	} `positional-args:"yes"`
}

// Execute runs template subcommand.
func (command *templateCommand) Execute(_ []string) error {
	return command.runner.runTemplate(command.Args.Output)
}

// docsCommand groups dbt docs integration subcommands.
type docsCommand struct {
	Generate docsGenerateCommand `command:"generate" description:"Run dbt docs generate and embed rendered ERDs"`
	Patch    docsPatchCommand    `command:"patch" description:"Embed rendered ERDs into already generated dbt docs"`
}

// docsGenerateCommand wraps dbt docs generate.
type docsGenerateCommand struct {
	runner *cliRunner

	DiagramFlags diagramFlags `group:"Diagram"`
	DbtBinary    string       `long:"dbt" description:"dbt executable" default:"dbt"`
	ProjectDir   string       `long:"project-dir" description:"dbt project directory" default:"."`
}

// Execute runs docs generate subcommand. Remaining args are passed to dbt.
func (command *docsGenerateCommand) Execute(args []string) error {
	command.runner.initLogging()
	return command.runner.runDocsGenerate(command.DbtBinary, command.ProjectDir, command.DiagramFlags, args)
}

// docsPatchCommand patches existing dbt docs output.
type docsPatchCommand struct {
	runner *cliRunner

	DiagramFlags diagramFlags `group:"Diagram"`
	TargetDir    string       `short:"t" long:"dbt-target-dir" description:"dbt target directory with generated docs" default:"target"`
	Static       bool         `long:"static" description:"Also write static_index.html with inlined artifacts"`
}

// Execute runs docs patch subcommand.
func (command *docsPatchCommand) Execute(_ []string) error {
	command.runner.initLogging()
	return command.runner.runDocsPatch(command.TargetDir, command.DiagramFlags, command.Static)
}

// versionCommand prints version information.
type versionCommand struct {
	runner *cliRunner
}

// Execute runs version subcommand.
func (command *versionCommand) Execute(_ []string) error {
	printVersionInfo(command.runner.stdout)
	return nil
}

// cliRunner executes CLI operations with custom IO streams.
type cliRunner struct {
	ctx         context.Context
	options     *cliOptions
	stdout      io.Writer
	stderr      io.Writer
	programName string
}

func init() {
	if _buildTime != "" {
		if t, err := time.Parse(time.RFC3339, _buildTime); err == nil {
			BuildTime = t.UTC()
		}
	}
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes CLI logic and returns process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	programName := strings.TrimSpace(os.Args[0])
	if programName == "" {
		programName = "dbtdiagrams"
	}

	runner := cliRunner{
		ctx:         ctx,
		programName: filepath.Base(programName),
		stdout:      stdout,
		stderr:      stderr,
	}

	return runner.run(args)
}

// run parses CLI args and maps errors to process exit codes.
func (runner *cliRunner) run(args []string) int {
	err := parseCLIArgs(args, runner)
	if err == nil {
		return 0
	}

	var flagErr *flags.Error
	if errors.As(err, &flagErr) {
		if flagErr.Type == flags.ErrHelp {
			writeCLIError(runner.stdout, err)
			return 0
		}

		writeCLIError(runner.stderr, err)
		return 2
	}

	writeCLIError(runner.stderr, err)
	return 1
}

// initLogging points library logging to the runner stderr.
func (runner *cliRunner) initLogging() {
	debug, logJSON := false, false
	if runner.options != nil {
		debug, logJSON = runner.options.Debug, runner.options.LogJSON
	}

	dbtdiagrams.InitLogging(runner.stderr, logJSON, debug)
}

// runRender validates artifact selection, renders diagrams and writes them.
func (runner *cliRunner) runRender(artifacts artifactFlags, diagram diagramFlags, output outputFlags, watch bool) error {
	if err := validateArtifactSelection(artifacts); err != nil {
		return err
	}

	if artifacts.Manifest != "" && artifacts.Catalog == "" {
		dbtdiagrams.Log.Warn("No catalog file specified. ERD won't have column type annotations.")
	}

	format, err := dbtdiagrams.ParseFormat(output.Format)
	if err != nil {
		return err
	}

	if output.Stdout && format == dbtdiagrams.FormatSVG {
		return &dbtdiagrams.ConfigurationError{Message: "svg output cannot be written to stdout"}
	}

	opt, err := diagramOptions(diagram)
	if err != nil {
		return err
	}

	renderOnce := func() error {
		diagrams, err := renderArtifacts(artifacts, opt)
		if err != nil {
			return err
		}

		if output.Stdout {
			return runner.writeDiagramsToStdout(diagrams, format)
		}

		var renderer dbtdiagrams.Renderer
		if format == dbtdiagrams.FormatSVG {
			renderer = dbtdiagrams.CommandRenderer{Command: output.Renderer}
		}

		written, err := dbtdiagrams.WriteDiagrams(runner.ctx, diagrams, output.OutputDir, format, renderer, output.Workers)
		if err != nil {
			return err
		}

		dbtdiagrams.Log.WithFields(logrus.Fields{
			"dir":      output.OutputDir,
			"diagrams": len(written),
		}).Info("Finished. Output written.")
		return nil
	}

	if !watch {
		return renderOnce()
	}

	return dbtdiagrams.Watch(runner.ctx, watchedArtifacts(artifacts), 0, renderOnce)
}

// runDocsGenerate runs dbt docs generate, then embeds rendered ERDs into the generated site.
func (runner *cliRunner) runDocsGenerate(dbtBinary, projectDir string, diagram diagramFlags, dbtArgs []string) error {
	static := slices.Contains(dbtArgs, staticFlag)
	passArgs := slices.DeleteFunc(slices.Clone(dbtArgs), func(arg string) bool {
		return arg == staticFlag
	})

	if err := runner.runDbtDocsGenerate(dbtBinary, projectDir, passArgs); err != nil {
		return err
	}

	dbtdiagrams.Log.Info("Finished generating dbt docs. Rendering ERDs and adding mermaid...")

	targetDir, err := dbtdiagrams.ResolveTargetPath(projectDir, dbtdiagrams.TargetPathArg(dbtArgs), os.Getenv)
	if err != nil {
		return err
	}

	return runner.runDocsPatch(targetDir, diagram, static)
}

// runDocsPatch renders ERDs from target dir and patches manifest.json and index.html in place.
func (runner *cliRunner) runDocsPatch(targetDir string, diagram diagramFlags, static bool) error {
	opt, err := diagramOptions(diagram)
	if err != nil {
		return err
	}

	diagrams, err := dbtdiagrams.RenderTargetDir(targetDir, opt)
	if err != nil {
		return err
	}

	if err := dbtdiagrams.PatchDocsSite(targetDir, diagrams); err != nil {
		return err
	}

	if static {
		if err := dbtdiagrams.WriteStaticIndex(targetDir); err != nil {
			return err
		}
	}

	dbtdiagrams.Log.WithField("target", targetDir).Info("All done.")
	return nil
}

// runDbtDocsGenerate executes dbt docs generate in the project directory.
func (runner *cliRunner) runDbtDocsGenerate(dbtBinary, projectDir string, args []string) error {
	commandArgs := append([]string{"docs", "generate"}, args...)
	command := exec.CommandContext(runner.ctx, dbtBinary, commandArgs...)
	command.Dir = projectDir

	var stdoutTail, stderrTail bytes.Buffer
	command.Stdout = io.MultiWriter(runner.stdout, &stdoutTail)
	command.Stderr = io.MultiWriter(runner.stderr, &stderrTail)

	dbtdiagrams.Log.WithField("args", strings.Join(commandArgs, " ")).Debug("running dbt")
	if err := command.Run(); err != nil {
		detail := strings.TrimSpace(stderrTail.String())
		if detail == "" {
			detail = strings.TrimSpace(stdoutTail.String())
		}
		if detail == "" {
			detail = err.Error()
		}

		return fmt.Errorf("%s %s: %s", dbtBinary, strings.Join(commandArgs, " "), lastLine(detail))
	}

	return nil
}

// runTemplate writes built-in template to stdout or file.
func (runner *cliRunner) runTemplate(outputPath string) error {
	tpl, err := dbtdiagrams.BuiltinTemplate()
	if err != nil {
		return fmt.Errorf("load built-in template: %w", err)
	}

	if strings.TrimSpace(outputPath) == "" {
		if _, err := io.WriteString(runner.stdout, tpl); err != nil {
			return fmt.Errorf("write template to stdout: %w", err)
		}

		return nil
	}

	if err := os.WriteFile(outputPath, []byte(tpl), 0o600); err != nil {
		return fmt.Errorf("write template file %q: %w", outputPath, err)
	}

	return nil
}

// writeDiagramsToStdout prints diagrams sorted by name.
func (runner *cliRunner) writeDiagramsToStdout(diagrams map[string]string, format dbtdiagrams.Format) error {
	for _, name := range dbtdiagrams.DiagramNames(diagrams) {
		text := diagrams[name]
		if format == dbtdiagrams.FormatMarkdown {
			text = dbtdiagrams.AsMarkdown(text)
		}

		if _, err := io.WriteString(runner.stdout, text); err != nil {
			return fmt.Errorf("write diagram %q to stdout: %w", name, err)
		}
	}

	return nil
}

// validateArtifactSelection rejects missing or conflicting artifact flags.
func validateArtifactSelection(artifacts artifactFlags) error {
	switch {
	case artifacts.TargetDir != "" && (artifacts.Manifest != "" || artifacts.Catalog != ""):
		return &dbtdiagrams.ConfigurationError{Message: "either define target dir or manifest but not both"}
	case artifacts.TargetDir == "" && artifacts.Manifest == "" && artifacts.Catalog == "":
		return &dbtdiagrams.ConfigurationError{Message: "one of manifest file or target dir has to be specified"}
	case artifacts.Catalog != "" && artifacts.Manifest == "":
		return &dbtdiagrams.ConfigurationError{Message: "only catalog provided, manifest file should be provided at a minimum"}
	default:
		return nil
	}
}

// renderArtifacts renders diagrams from the selected artifacts.
func renderArtifacts(artifacts artifactFlags, opt dbtdiagrams.Options) (map[string]string, error) {
	if artifacts.TargetDir != "" {
		return dbtdiagrams.RenderTargetDir(artifacts.TargetDir, opt)
	}

	return dbtdiagrams.RenderFiles(artifacts.Manifest, artifacts.Catalog, opt)
}

// watchedArtifacts lists files whose changes trigger re-rendering.
func watchedArtifacts(artifacts artifactFlags) []string {
	if artifacts.TargetDir != "" {
		return []string{
			filepath.Join(artifacts.TargetDir, dbtdiagrams.ManifestFileName),
			filepath.Join(artifacts.TargetDir, dbtdiagrams.CatalogFileName),
		}
	}

	files := []string{artifacts.Manifest}
	if artifacts.Catalog != "" {
		files = append(files, artifacts.Catalog)
	}

	return files
}

// diagramOptions builds assembly options from diagram flags.
func diagramOptions(diagram diagramFlags) (dbtdiagrams.Options, error) {
	opt := dbtdiagrams.Options{IncludeColumns: !diagram.NoColumns}
	if diagram.TemplatePath != "" {
		customTemplate, err := os.ReadFile(diagram.TemplatePath)
		if err != nil {
			return dbtdiagrams.Options{}, fmt.Errorf("read template file %q: %w", diagram.TemplatePath, err)
		}

		opt.TemplateText = string(customTemplate)
	}

	return opt, nil
}

// writeCLIError writes a plain-text CLI error line to the selected stream.
func writeCLIError(output io.Writer, err error) {
	if err == nil {
		return
	}

	//nolint:gosec // CLI writes plain-text diagnostics to terminal streams, not HTTP responses.
	_, _ = fmt.Fprintln(output, err.Error())
}

// parseCLIArgs parses CLI arguments and triggers selected subcommand execution.
func parseCLIArgs(args []string, runner *cliRunner) error {
	options := &cliOptions{}
	options.Version.runner = runner
	options.Render.runner = runner
	options.Template.runner = runner
	options.Docs.Generate.runner = runner
	options.Docs.Patch.runner = runner
	runner.options = options

	parser := flags.NewParser(options, flags.HelpFlag|flags.PassDoubleDash)
	parser.Name = runner.programName
	applyCommandLongDescriptions(parser, runner.programName)

	_, err := parser.ParseArgs(args)
	if err != nil {
		return err
	}

	return nil
}

// applyCommandLongDescriptions configures detailed command help text with examples.
func applyCommandLongDescriptions(parser *flags.Parser, programName string) {
	descriptions := map[string]string{
		"render": strings.TrimSpace(fmt.Sprintf(`
Render mermaid ERDs from dbt artifacts annotated with meta.erd connections.
Writes one file per diagram name into the output directory.

Examples:
> $ %s render -t target -o docs
> $ %s render -m target/manifest.json -c target/catalog.json -f svg -o docs
`, programName, programName)),
		"template": strings.TrimSpace(fmt.Sprintf(`
Print built-in mermaid diagram template text.
Use it as a starting point for a custom template file.

Examples:
> $ %s template > erd.gotmpl
`, programName)),
		"docs generate": strings.TrimSpace(fmt.Sprintf(`
Run `+"`dbt docs generate`"+`, then replace `+"```mermaid[erd=\"name\"]```"+` placeholders in
model descriptions and doc blocks with rendered ERDs. Arguments after -- are passed to dbt.

Examples:
> $ %s docs generate
> $ %s docs generate -- --target-path build --static
`, programName, programName)),
	}

	for commandPath, description := range descriptions {
		command := parser.Command
		for _, name := range strings.Fields(commandPath) {
			if command = command.Find(name); command == nil {
				break
			}
		}

		if command == nil {
			continue
		}

		command.LongDescription = description
	}
}

// lastLine returns last non-empty line of multi-line command output.
func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func printVersionInfo(output io.Writer) {
	_, _ = fmt.Fprintf(output, `url:      %s
file:     %s
version:  %s
commit:   %s
built:    %s
`, URL, os.Args[0], Version, Commit, BuildTime)
}
