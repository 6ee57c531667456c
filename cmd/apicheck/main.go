// apicheck is the black-box test runner for the wildlife monitoring API.
//
// Usage:
//
//	apicheck test [path]                Run YAML/JSON scenarios against a target
//	apicheck suite [filter]             Run the built-in API suite
//	apicheck compare <exp> <act>        Tree-compare two JSON or YAML documents
//	apicheck status                     Health check every target
//	apicheck reset                      Reset state on every fake target
//	apicheck seed <target> [file]       Load a state file into a fake target
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/wildwatch/apicheck/internal/apiclient"
	"github.com/wildwatch/apicheck/internal/client"
	"github.com/wildwatch/apicheck/internal/config"
	"github.com/wildwatch/apicheck/internal/manifest"
	"github.com/wildwatch/apicheck/internal/report"
	"github.com/wildwatch/apicheck/internal/scenario"
	"github.com/wildwatch/apicheck/internal/suite"
	"github.com/wildwatch/apicheck/pkg/sortutil"
	"github.com/wildwatch/apicheck/pkg/treecompare"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

// options are the global flags accepted before or after the command.
type options struct {
	manifestPath string
	color        string
	target       string
	verbose      bool
}

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "apicheck: %v\n", err)
		os.Exit(1)
	}

	cmd, args, opts := parseArgs(os.Args[1:], env.ConfigPath)
	if cmd == "" || cmd == "help" || cmd == "--help" || cmd == "-h" {
		printUsage()
		if cmd == "" {
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{env: env, opts: opts, out: report.New(os.Stdout, opts.color)}

	var failed bool
	switch cmd {
	case "version", "--version":
		fmt.Printf("apicheck version %s\n", version)
		return
	case "test":
		failed, err = a.cmdTest(ctx, args)
	case "suite":
		failed, err = a.cmdSuite(ctx, args)
	case "compare":
		failed, err = a.cmdCompare(args)
	case "status":
		err = a.cmdStatus(ctx)
	case "reset":
		err = a.cmdReset(ctx)
	case "seed":
		err = a.cmdSeed(ctx, args)
	default:
		fmt.Fprintf(os.Stderr, "apicheck: unknown command %q\n\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "apicheck: %v\n", err)
		os.Exit(1)
	}
	if failed {
		os.Exit(1)
	}
}

// parseArgs extracts the subcommand, positional args and global options.
// Options may appear anywhere; everything else is passed to the command.
func parseArgs(raw []string, manifestPath string) (command string, args []string, opts options) {
	opts = options{manifestPath: manifestPath, color: report.ColorAuto}

	var filtered []string
	for i := 0; i < len(raw); i++ {
		switch {
		case raw[i] == "--config" && i+1 < len(raw):
			opts.manifestPath = raw[i+1]
			i++
		case raw[i] == "--color" && i+1 < len(raw):
			opts.color = raw[i+1]
			i++
		case raw[i] == "--target" && i+1 < len(raw):
			opts.target = raw[i+1]
			i++
		case raw[i] == "--verbose":
			opts.verbose = true
		default:
			filtered = append(filtered, raw[i])
		}
	}

	if len(filtered) == 0 {
		return "", nil, opts
	}
	return filtered[0], filtered[1:], opts
}

func printUsage() {
	fmt.Printf(`apicheck: wildlife API test runner %s

Usage:
  apicheck [options] <command> [arguments]

Commands:
  test [path]                Run scenarios from a file or directory (default: settings.scenario_dir)
  suite [filter]             Run the built-in suite, optionally one area or matching checks
  compare <exp> <act>        Compare two JSON/YAML documents
      --exclude <path>       Skip a path such as .devices[].id (repeatable)
      --sort <path=k1,k2>    Sort a sequence on both sides first (repeatable)
      --field <name>         Compare one top-level field
      --flat                 Use the flat comparator; --exclude names keys
  status                     Health check every target
  reset                      Reset state on every target with an admin plane
  seed <target> [file]       Load a state file (default: the target's seed)
  version                    Print the apicheck version

Options:
  --config <path>   Path to manifest (default: ./apicheck.yaml)
  --target <name>   Target to run against (default: the only or "default" target)
  --color <mode>    auto, always or never (default: auto)
  --verbose         Log every suite check to stderr

Environment:
  APICHECK_CONFIG               Override default manifest path
  APICHECK_API_URL              Override the target's base_url
  APICHECK_SUPERUSER            Superuser name checked by "status"
  APICHECK_SUPERUSER_PASSWORD   Superuser password
  APICHECK_TIMEOUT              Per-request timeout (default: 10s)
  APICHECK_TEST_PREFIX          Prefix for generated user, group and device names
`, version)
}

// app carries what every command needs.
type app struct {
	env  *config.Env
	opts options
	out  *report.Printer
}

// loadManifest reads the manifest. Without one, APICHECK_API_URL alone
// defines a single real target named "env".
func (a *app) loadManifest() (*manifest.Manifest, error) {
	m, err := manifest.Load(a.opts.manifestPath)
	if err == nil {
		return m, nil
	}
	if a.env.APIURL != "" && errors.Is(err, fs.ErrNotExist) {
		return &manifest.Manifest{
			Targets: map[string]manifest.Target{
				"env": {BaseURL: a.env.APIURL, AdminURL: "none"},
			},
			Settings: manifest.Settings{ScenarioDir: "scenarios", TestPrefix: a.env.TestPrefix},
		}, nil
	}
	return nil, err
}

// pickTarget resolves a target name. An empty name means the manifest's only
// target, or the one called "default".
func (a *app) pickTarget(m *manifest.Manifest, name string) (string, manifest.Target, error) {
	if name == "" {
		names := m.TargetNames()
		switch {
		case len(names) == 1:
			name = names[0]
		case hasTarget(m, "default"):
			name = "default"
		default:
			return "", manifest.Target{}, fmt.Errorf("manifest defines %d targets (%s); choose one with --target",
				len(names), strings.Join(names, ", "))
		}
	}
	t, err := m.Target(name)
	if err != nil {
		return "", manifest.Target{}, err
	}
	if a.env.APIURL != "" {
		t.BaseURL = a.env.APIURL
	}
	return name, t, nil
}

func hasTarget(m *manifest.Manifest, name string) bool {
	_, ok := m.Targets[name]
	return ok
}

// testPrefix prefers APICHECK_TEST_PREFIX over the manifest setting.
func (a *app) testPrefix(m *manifest.Manifest) string {
	if _, ok := os.LookupEnv(config.EnvTestPrefix); ok {
		return a.env.TestPrefix
	}
	return m.Settings.TestPrefix
}

func (a *app) httpClient() *http.Client {
	return &http.Client{Timeout: a.env.Timeout}
}

// ---------------------------------------------------------------------------
// apicheck test [path]
// ---------------------------------------------------------------------------

func (a *app) cmdTest(ctx context.Context, args []string) (bool, error) {
	m, err := a.loadManifest()
	if err != nil {
		return false, err
	}

	path := m.Settings.ScenarioDir
	if len(args) > 0 {
		path = args[0]
	}
	info, err := os.Stat(path)
	if err != nil {
		return false, fmt.Errorf("scenario path %s: %w", path, err)
	}

	paths := []string{path}
	if info.IsDir() {
		if paths, err = scenario.Files(path); err != nil {
			return false, err
		}
	}

	runners := make(map[string]*scenario.Runner)
	var total report.Tally
	for _, p := range paths {
		s, err := scenario.LoadScenario(p)
		if err != nil {
			total.Add(a.out.LoadError(filepath.Base(p), err))
			continue
		}

		name := a.opts.target
		if name == "" {
			name = s.Target
		}
		name, target, err := a.pickTarget(m, name)
		if err != nil {
			total.Add(a.out.Scenario(s, nil, err))
			continue
		}
		runner, ok := runners[name]
		if !ok {
			runner = scenario.NewRunner(target, a.httpClient())
			runners[name] = runner
		}

		result, err := runner.Run(ctx, s)
		total.Add(a.out.Scenario(s, result, err))
	}

	a.out.Summary(total)
	return total.Failed > 0, nil
}

// ---------------------------------------------------------------------------
// apicheck suite [filter]
// ---------------------------------------------------------------------------

func (a *app) cmdSuite(ctx context.Context, args []string) (bool, error) {
	checks, err := suite.Select(strings.Join(args, " "))
	if err != nil {
		return false, err
	}

	m, err := a.loadManifest()
	if err != nil {
		return false, err
	}
	_, target, err := a.pickTarget(m, a.opts.target)
	if err != nil {
		return false, err
	}

	level := slog.LevelInfo
	if a.opts.verbose || m.Settings.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	session := apiclient.NewSession(target.BaseURL, a.httpClient(), apiclient.NewNamer(a.testPrefix(m)))
	r := suite.Run(ctx, session, checks, logger)

	t := a.out.Suite(r)
	a.out.Summary(t)
	return t.Failed > 0, nil
}

// ---------------------------------------------------------------------------
// apicheck compare <expected> <actual>
// ---------------------------------------------------------------------------

// listFlag collects a repeatable string flag.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = append(*l, v)
	return nil
}

// compareOptions are the inputs of one document comparison.
type compareOptions struct {
	expected string
	actual   string
	field    string
	flat     bool
	exclude  []string
	sorts    []scenario.SortSpec
}

func parseCompareArgs(args []string) (*compareOptions, error) {
	flags := flag.NewFlagSet("compare", flag.ContinueOnError)
	flags.SetOutput(os.Stderr)
	var (
		opts     compareOptions
		excludes listFlag
		sorts    listFlag
	)
	flags.Var(&excludes, "exclude", "path to skip (repeatable)")
	flags.Var(&sorts, "sort", "path=key1,key2 to sort before comparing (repeatable)")
	flags.StringVar(&opts.field, "field", "", "top-level field to compare")
	flags.BoolVar(&opts.flat, "flat", false, "use the flat comparator")

	// flags may follow the positional arguments
	var positional []string
	for len(args) > 0 {
		if err := flags.Parse(args); err != nil {
			return nil, err
		}
		args = flags.Args()
		if len(args) > 0 {
			positional = append(positional, args[0])
			args = args[1:]
		}
	}
	if len(positional) != 2 {
		return nil, fmt.Errorf("usage: apicheck compare <expected> <actual> [--exclude path]... [--sort path=keys]... [--field name] [--flat]")
	}
	opts.expected, opts.actual = positional[0], positional[1]
	opts.exclude = excludes

	for _, s := range sorts {
		path, keys, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --sort %q: want path=key1,key2", s)
		}
		sorter := scenario.SortSpec{Path: strings.TrimPrefix(path, ".")}
		if keys != "" {
			sorter.Keys = strings.Split(keys, ",")
		}
		opts.sorts = append(opts.sorts, sorter)
	}
	return &opts, nil
}

// readDocument decodes a JSON or YAML file. JSON is valid YAML, so
// anything that is not .json goes through the YAML decoder.
func readDocument(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return treecompare.Normalize(doc)
}

// compareDocuments returns the comparator's verdict, or an error wrapping
// the read failure when a document cannot be loaded.
func compareDocuments(opts *compareOptions) (verdict, err error) {
	expected, err := readDocument(opts.expected)
	if err != nil {
		return nil, err
	}
	actual, err := readDocument(opts.actual)
	if err != nil {
		return nil, err
	}

	if opts.field != "" {
		expected = field(expected, opts.field)
		actual = field(actual, opts.field)
	}
	for _, s := range opts.sorts {
		if expected, err = sortutil.SortedBy(expected, s.Path, s.Keys...); err != nil {
			return nil, fmt.Errorf("sorting expected: %w", err)
		}
		if actual, err = sortutil.SortedBy(actual, s.Path, s.Keys...); err != nil {
			return nil, fmt.Errorf("sorting actual: %w", err)
		}
	}

	if opts.flat {
		return treecompare.CompareFlat(expected, actual, opts.exclude), nil
	}
	return treecompare.Compare(expected, actual, opts.exclude), nil
}

func field(doc any, name string) any {
	if m, ok := doc.(map[string]any); ok {
		if v, ok := m[name]; ok {
			return v
		}
	}
	return treecompare.Undefined
}

func (a *app) cmdCompare(args []string) (bool, error) {
	opts, err := parseCompareArgs(args)
	if err != nil {
		return false, err
	}
	verdict, err := compareDocuments(opts)
	if err != nil {
		return false, err
	}
	if errors.Is(verdict, treecompare.ErrPattern) {
		return false, verdict
	}
	a.out.Comparison(verdict)
	return verdict != nil, nil
}

// ---------------------------------------------------------------------------
// apicheck status
// ---------------------------------------------------------------------------

func (a *app) cmdStatus(ctx context.Context) error {
	m, err := a.loadManifest()
	if err != nil {
		return err
	}
	ac := client.New(a.env.Timeout)

	fmt.Println()
	fmt.Printf("  %-20s %-11s %-11s %s\n", "TARGET", "HEALTH", "SUPERUSER", "URL")
	fmt.Printf("  %-20s %-11s %-11s %s\n", "------", "------", "---------", "---")

	for _, name := range m.TargetNames() {
		_, t, err := a.pickTarget(m, name)
		if err != nil {
			return err
		}

		health := "real"
		if t.HasAdmin() {
			if ok, _ := ac.Health(ctx, t.AdminURL); ok {
				health = "healthy"
			} else {
				health = "unhealthy"
			}
		}

		fmt.Printf("  %-20s %-11s %-11s %s\n", name, health, a.superuserStatus(ctx, m, t), t.BaseURL)
	}

	fmt.Println()
	return nil
}

// superuserStatus logs in with the configured superuser, if any.
func (a *app) superuserStatus(ctx context.Context, m *manifest.Manifest, t manifest.Target) string {
	if !a.env.HasSuperuser() {
		return "-"
	}
	s := apiclient.NewSession(t.BaseURL, a.httpClient(), apiclient.NewNamer(a.testPrefix(m)))
	if _, err := s.LoginExisting(ctx, "superuser", a.env.Superuser, a.env.SuperuserPassword, apiclient.CheckOptions{}); err != nil {
		return "rejected"
	}
	return "ok"
}

// ---------------------------------------------------------------------------
// apicheck reset
// ---------------------------------------------------------------------------

func (a *app) cmdReset(ctx context.Context) error {
	m, err := a.loadManifest()
	if err != nil {
		return err
	}
	ac := client.New(a.env.Timeout)

	fmt.Println("Resetting targets...")
	fmt.Println()

	for _, name := range m.TargetNames() {
		t := m.Targets[name]
		if !t.HasAdmin() {
			fmt.Printf("  %-20s skipped (no admin plane)\n", name)
			continue
		}
		resp, err := ac.Reset(ctx, t.AdminURL)
		if err != nil {
			fmt.Printf("  %-20s FAILED: %v\n", name, err)
		} else {
			fmt.Printf("  %-20s reset   %s\n", name, resp)
		}
	}

	fmt.Println()
	return nil
}

// ---------------------------------------------------------------------------
// apicheck seed <target> [file]
// ---------------------------------------------------------------------------

func (a *app) cmdSeed(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: apicheck seed <target> [file]")
	}

	m, err := a.loadManifest()
	if err != nil {
		return err
	}
	t, err := m.Target(args[0])
	if err != nil {
		return err
	}
	if !t.HasAdmin() {
		return fmt.Errorf("target %q has no admin plane", args[0])
	}

	seedFile := t.Seed
	if len(args) > 1 {
		seedFile = args[1]
	}
	if seedFile == "" {
		return fmt.Errorf("no seed file given and target %q has no seed", args[0])
	}

	resp, err := client.New(a.env.Timeout).Seed(ctx, t.AdminURL, seedFile)
	if err != nil {
		return fmt.Errorf("seeding %s: %w", args[0], err)
	}
	fmt.Printf("Seeded %s: %s\n", args[0], resp)
	return nil
}
