package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/goccy/go-json"
	"golang.org/x/term"

	"chat_timelines/pkg/export"
	"chat_timelines/pkg/graph"
	"chat_timelines/pkg/history"
	"chat_timelines/pkg/interaction"
	"chat_timelines/pkg/legend"
	"chat_timelines/pkg/loader"
	"chat_timelines/pkg/model"
	"chat_timelines/pkg/settings"
	"chat_timelines/pkg/state"
	"chat_timelines/pkg/ui"
	"chat_timelines/pkg/version"
	"chat_timelines/pkg/watcher"
)

func main() {
	help := flag.Bool("help", false, "Show help")
	versionFlag := flag.Bool("version", false, "Show version")
	chatsDir := flag.String("chats", "./chats", "Directory of .jsonl chat session files")
	groupMode := flag.Bool("group", false, "Group mode: one opaque node per chat file, no edges")
	title := flag.String("title", "", "Title used in exports (defaults to the chat directory name)")
	orientationFlag := flag.String("orientation", "", "Layout orientation: LR or TB (overrides settings)")
	exportHTML := flag.String("export-html", "", "Export an interactive HTML timeline to the given path")
	exportSVG := flag.String("export-svg", "", "Export a static SVG timeline to the given path")
	exportPNG := flag.String("export-png", "", "Export a PNG timeline to the given path")
	exportMD := flag.String("export-md", "", "Export a markdown timeline report to the given path")
	serveAddr := flag.String("serve", "", "Serve a live-reloading HTML preview on this address (e.g. :8400)")
	robotGraph := flag.Bool("robot-graph", false, "Output the deduplicated graph as JSON for AI agents")
	robotHelp := flag.Bool("robot-help", false, "Show AI agent help")
	editSettings := flag.Bool("settings", false, "Edit viewer settings interactively")
	resetSettings := flag.Bool("reset-settings", false, "Reset viewer settings to defaults")
	noWatch := flag.Bool("no-watch", false, "Disable live rebuild on chat file changes")
	flag.Parse()

	if *help {
		fmt.Println("tl - chat timeline viewer")
		fmt.Println()
		fmt.Println("Visualizes branching chat sessions as a deduplicated timeline graph.")
		fmt.Println()
		flag.PrintDefaults()
		os.Exit(0)
	}

	if *versionFlag {
		fmt.Printf("tl %s\n", version.Version)
		os.Exit(0)
	}

	if *robotHelp {
		fmt.Println("tl robot interface (stable JSON on stdout):")
		fmt.Println()
		fmt.Println("  --robot-graph")
		fmt.Println("      Emit the deduplicated timeline graph: nodes (id, name, msg,")
		fmt.Println("      depth, sessions, color, bookmark), edges (source, target,")
		fmt.Println("      color, bookmark label), and the derived legend.")
		fmt.Println("      Combine with --chats and --group.")
		os.Exit(0)
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error getting current directory: %v\n", err)
		os.Exit(1)
	}

	settingsPath := settings.DefaultPath(cwd)

	if *resetSettings {
		confirmed := false
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title("Reset all viewer settings to defaults?").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if !confirmed {
			fmt.Println("Aborted.")
			os.Exit(0)
		}
		if _, err := settings.Reset(settingsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error resetting settings: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Settings reset to defaults.")
		os.Exit(0)
	}

	opts, err := settings.Load(settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
	}

	if *editSettings {
		if err := runSettingsForm(&opts, settingsPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error editing settings: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	if *orientationFlag != "" {
		o := model.Orientation(*orientationFlag)
		if !o.IsValid() {
			fmt.Fprintf(os.Stderr, "Error: orientation must be LR or TB, got %q\n", *orientationFlag)
			os.Exit(1)
		}
		opts.Orientation = string(o)
	}

	if err := loader.EnsureDotdirInGitignore(cwd); err != nil {
		log.Printf("gitignore: %v", err)
	}

	contextID := loader.ContextID(*chatsDir)
	exportTitle := *title
	if exportTitle == "" {
		exportTitle = filepath.Base(contextID)
	}

	store := state.New(model.Orientation(opts.Orientation))
	buildFn := func() (model.Graph, error) {
		if *groupMode {
			files, err := loader.LoadGroupChats(*chatsDir)
			if err != nil {
				return model.Graph{}, err
			}
			g, _ := graph.BuildGroup(files, opts)
			return g, nil
		}
		sessions, err := loader.LoadSessions(*chatsDir)
		if err != nil {
			return model.Graph{}, err
		}
		g, _ := graph.Build(sessions, opts)
		if err := graph.Verify(g); err != nil {
			return model.Graph{}, err
		}
		return g, nil
	}

	if _, err := store.EnsureBuilt(contextID, buildFn); err != nil {
		fmt.Fprintf(os.Stderr, "Error: no data available: %v\n", err)
		os.Exit(1)
	}
	g := store.Snapshot()
	entries := legend.Build(g)
	layout := interaction.LayoutFor(store.Orientation(), opts)

	if *robotGraph {
		output := struct {
			Nodes  []model.Node   `json:"nodes"`
			Edges  []model.Edge   `json:"edges"`
			Legend []legend.Entry `json:"legend"`
		}{g.Nodes, g.Edges, entries}
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(output); err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding graph: %v\n", err)
			os.Exit(1)
		}
		os.Exit(0)
	}

	exported := false
	if *exportHTML != "" {
		path, err := export.GenerateHTML(export.HTMLOptions{
			Graph:       g,
			Legend:      entries,
			Title:       exportTitle,
			DataHash:    hashFor(*chatsDir, *groupMode),
			Orientation: store.Orientation(),
			Path:        *exportHTML,
		})
		exitOnExportErr("HTML", err)
		fmt.Printf("Exported %s\n", path)
		exported = true
	}
	if *exportSVG != "" {
		path, err := export.GenerateSVG(g, layout, *exportSVG)
		exitOnExportErr("SVG", err)
		fmt.Printf("Exported %s\n", path)
		exported = true
	}
	if *exportPNG != "" {
		path, err := export.GeneratePNG(g, layout, *exportPNG)
		exitOnExportErr("PNG", err)
		fmt.Printf("Exported %s\n", path)
		exported = true
	}
	if *exportMD != "" {
		report, err := export.GenerateMarkdown(g, exportTitle)
		exitOnExportErr("markdown", err)
		exitOnExportErr("markdown", os.WriteFile(*exportMD, []byte(report), 0644))
		fmt.Printf("Exported %s\n", *exportMD)
		exported = true
	}
	if exported {
		os.Exit(0)
	}

	if *serveAddr != "" {
		if err := servePreview(*serveAddr, *chatsDir, *groupMode, exportTitle, opts, store); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if g.IsEmpty() {
		fmt.Println("No chat sessions found. Point --chats at a directory of .jsonl files.")
		os.Exit(0)
	}

	if !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "Error: stdout is not a terminal; use --robot-graph or an --export-* flag")
		os.Exit(1)
	}

	runTUI(store, opts, contextID, *chatsDir, *groupMode, *noWatch)
}

func runTUI(store *state.Store, opts settings.Settings, contextID, chatsDir string, groupMode, noWatch bool) {
	var hist *history.Store
	cwd, _ := os.Getwd()
	if h, err := history.Open(history.DefaultPath(cwd)); err != nil {
		log.Printf("history: %v (navigation will not be recorded)", err)
	} else {
		hist = h
		defer hist.Close()
	}

	canvas := ui.NewCanvas()
	nav := ui.NewProgramNavigator(store, hist, contextID)
	controller := interaction.New(store, canvas, nav, opts)

	m := ui.NewModel(ui.ModelConfig{
		Store:      store,
		Controller: controller,
		Canvas:     canvas,
		History:    hist,
		Options:    opts,
		ContextID:  contextID,
	})

	var worker *ui.BackgroundWorker
	if !noWatch {
		w, err := ui.NewBackgroundWorker(ui.WorkerConfig{
			ChatsDir:  chatsDir,
			GroupMode: groupMode,
			Options:   opts,
		})
		if err != nil {
			log.Printf("watcher: %v (live rebuild disabled)", err)
		} else {
			worker = w
			m.SetWorker(worker)
		}
	}

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	nav.SetProgram(p)
	if worker != nil {
		worker.SetProgram(p)
		if err := worker.Start(); err != nil {
			log.Printf("watcher: %v", err)
		}
		defer worker.Stop()
	}

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running timeline viewer: %v\n", err)
		os.Exit(1)
	}
}

// servePreview regenerates the HTML bundle on chat changes and serves it
// with SSE live reload.
func servePreview(addr, chatsDir string, groupMode bool, title string, opts settings.Settings, store *state.Store) error {
	bundleDir := filepath.Join(".timelines", "preview")
	if err := os.MkdirAll(bundleDir, 0o755); err != nil {
		return fmt.Errorf("create preview dir: %w", err)
	}
	indexPath := filepath.Join(bundleDir, "index.html")

	regenerate := func() error {
		g := store.Snapshot()
		_, err := export.GenerateHTML(export.HTMLOptions{
			Graph:       g,
			Legend:      legend.Build(g),
			Title:       title,
			DataHash:    hashFor(chatsDir, groupMode),
			Orientation: store.Orientation(),
			Path:        indexPath,
		})
		return err
	}
	if err := regenerate(); err != nil {
		return err
	}

	hub, err := export.NewReloadHub(bundleDir)
	if err != nil {
		return err
	}
	if err := hub.Start(); err != nil {
		return err
	}
	defer hub.Stop()

	fw, err := watcher.NewWatcher(chatsDir)
	if err != nil {
		return err
	}
	if err := fw.Start(); err != nil {
		return err
	}
	defer fw.Stop()

	go func() {
		for range fw.Changed() {
			store.Invalidate()
			_, err := store.EnsureBuilt(loader.ContextID(chatsDir), func() (model.Graph, error) {
				if groupMode {
					files, err := loader.LoadGroupChats(chatsDir)
					if err != nil {
						return model.Graph{}, err
					}
					g, _ := graph.BuildGroup(files, opts)
					return g, nil
				}
				sessions, err := loader.LoadSessions(chatsDir)
				if err != nil {
					return model.Graph{}, err
				}
				g, _ := graph.Build(sessions, opts)
				return g, graph.Verify(g)
			})
			if err != nil {
				log.Printf("preview: rebuild failed, keeping previous bundle: %v", err)
				continue
			}
			if err := regenerate(); err != nil {
				log.Printf("preview: regenerate failed: %v", err)
			}
		}
	}()

	fmt.Printf("Serving timeline preview on http://localhost%s (watching %s)\n", addr, chatsDir)
	return http.ListenAndServe(addr, hub.PreviewHandler())
}

func hashFor(chatsDir string, groupMode bool) string {
	if groupMode {
		return ""
	}
	sessions, err := loader.LoadSessions(chatsDir)
	if err != nil {
		return ""
	}
	return graph.ComputeDataHash(sessions)
}

func exitOnExportErr(kind string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error exporting %s: %v\n", kind, err)
		os.Exit(1)
	}
}

// runSettingsForm edits and persists viewer settings through an
// interactive form.
func runSettingsForm(opts *settings.Settings, path string) error {
	nodeWidth := strconv.Itoa(opts.NodeWidth)
	nodeHeight := strconv.Itoa(opts.NodeHeight)
	nodeSpacing := strconv.Itoa(opts.NodeSpacing)
	rankSpacing := strconv.Itoa(opts.RankSpacing)
	tooltipDelay := strconv.Itoa(opts.TooltipDelayMs)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Node width").Value(&nodeWidth),
			huh.NewInput().Title("Node height").Value(&nodeHeight),
			huh.NewInput().Title("Node spacing").Value(&nodeSpacing),
			huh.NewInput().Title("Rank spacing").Value(&rankSpacing),
		),
		huh.NewGroup(
			huh.NewInput().Title("User node color").Value(&opts.UserNodeColor),
			huh.NewInput().Title("Character node color").Value(&opts.CharNodeColor),
			huh.NewInput().Title("Bookmark color").Value(&opts.BookmarkColor),
			huh.NewInput().Title("Edge color").Value(&opts.EdgeColor),
		),
		huh.NewGroup(
			huh.NewConfirm().Title("Color nodes per speaker?").Value(&opts.UseChatColors),
			huh.NewConfirm().Title("Use character avatar as root?").Value(&opts.AvatarAsRoot),
			huh.NewConfirm().Title("Lock node positions on load?").Value(&opts.LockNodes),
			huh.NewSelect[string]().
				Title("Orientation").
				Options(
					huh.NewOption("Left to right", "LR"),
					huh.NewOption("Top to bottom", "TB"),
				).
				Value(&opts.Orientation),
			huh.NewInput().Title("Tooltip delay (ms)").Value(&tooltipDelay),
		),
	)
	if err := form.Run(); err != nil {
		return err
	}

	var convErr error
	atoi := func(s string, fallback int) int {
		n, err := strconv.Atoi(s)
		if err != nil {
			convErr = fmt.Errorf("not a number: %q", s)
			return fallback
		}
		return n
	}
	opts.NodeWidth = atoi(nodeWidth, opts.NodeWidth)
	opts.NodeHeight = atoi(nodeHeight, opts.NodeHeight)
	opts.NodeSpacing = atoi(nodeSpacing, opts.NodeSpacing)
	opts.RankSpacing = atoi(rankSpacing, opts.RankSpacing)
	opts.TooltipDelayMs = atoi(tooltipDelay, opts.TooltipDelayMs)
	if convErr != nil {
		return convErr
	}

	if err := settings.Save(*opts, path); err != nil {
		return err
	}
	fmt.Printf("Settings saved to %s\n", path)
	return nil
}
