// Package export renders chat timeline graphs to shareable artifacts:
// interactive HTML, static SVG/PNG, and markdown reports.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"chat_timelines/pkg/legend"
	"chat_timelines/pkg/model"
)

// HTMLOptions configures interactive HTML generation.
type HTMLOptions struct {
	Graph       model.Graph
	Legend      []legend.Entry
	Title       string
	DataHash    string
	Orientation model.Orientation
	Path        string // Output path - if empty, auto-generated from the title
}

// htmlNode is the JSON shape consumed by the embedded force-graph script.
type htmlNode struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Msg        string   `json:"msg"`
	Depth      int      `json:"depth"`
	Sessions   []string `json:"sessions"`
	Color      string   `json:"color"`
	IsBookmark bool     `json:"is_bookmark"`
}

type htmlLink struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Color    string `json:"color"`
	Bookmark string `json:"bookmark"`
}

type htmlLegendEntry struct {
	Kind     string `json:"kind"`
	Label    string `json:"label"`
	Color    string `json:"color"`
	Selector string `json:"selector"`
}

// GenerateHTMLFilename creates an auto-generated filename:
// {title}_{YYYYMMDD}_{HHMMSS}.html
func GenerateHTMLFilename(title string) string {
	safe := strings.ReplaceAll(title, " ", "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	if safe == "" {
		safe = "timeline"
	}
	return fmt.Sprintf("%s_%s.html", safe, time.Now().Format("20060102_150405"))
}

// GenerateHTML writes a self-contained HTML timeline with force-graph
// rendering, legend highlight/lock, search, and orientation toggle. It
// returns the output path.
func GenerateHTML(opts HTMLOptions) (string, error) {
	if opts.Graph.IsEmpty() {
		return "", fmt.Errorf("no timeline data to export")
	}

	nodes := make([]htmlNode, 0, len(opts.Graph.Nodes))
	for _, n := range opts.Graph.Nodes {
		nodes = append(nodes, htmlNode{
			ID:         n.ID,
			Name:       n.Name,
			Msg:        n.Msg,
			Depth:      n.Depth,
			Sessions:   n.ChatSessions,
			Color:      n.Color,
			IsBookmark: n.IsBookmark,
		})
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	links := make([]htmlLink, 0, len(opts.Graph.Edges))
	for _, e := range opts.Graph.Edges {
		links = append(links, htmlLink{
			Source:   e.Source,
			Target:   e.Target,
			Color:    e.Color,
			Bookmark: e.BookmarkName,
		})
	}

	entries := make([]htmlLegendEntry, 0, len(opts.Legend))
	for _, le := range opts.Legend {
		entries = append(entries, htmlLegendEntry{
			Kind:     string(le.Kind),
			Label:    le.Label,
			Color:    le.Color,
			Selector: le.Selector,
		})
	}

	payload := map[string]interface{}{
		"nodes":  nodes,
		"links":  links,
		"legend": entries,
	}
	dataJSON, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal timeline data: %w", err)
	}

	title := opts.Title
	if title == "" {
		title = "Chat Timeline"
	}

	outputPath := opts.Path
	if outputPath == "" {
		outputPath = GenerateHTMLFilename(title)
	}
	if !strings.HasSuffix(strings.ToLower(outputPath), ".html") {
		outputPath = strings.TrimSuffix(outputPath, filepath.Ext(outputPath)) + ".html"
	}

	dagMode := "lr"
	if opts.Orientation == model.OrientTB {
		dagMode = "td"
	}

	html := renderTimelineHTML(title, opts.DataHash, string(dataJSON), dagMode, len(nodes), len(links))

	dir := filepath.Dir(outputPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("create dir: %w", err)
		}
	}

	if err := os.WriteFile(outputPath, []byte(html), 0644); err != nil {
		return "", err
	}

	return outputPath, nil
}

func renderTimelineHTML(title, dataHash, dataJSON, dagMode string, nodeCount, edgeCount int) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	return fmt.Sprintf(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>%s | Timeline</title>
    <link href="https://fonts.googleapis.com/css2?family=JetBrains+Mono:wght@400;500;600;700&display=swap" rel="stylesheet">
    <style>
        :root {
            --bg: #282a36;
            --bg-secondary: #44475a;
            --bg-tertiary: #21222c;
            --bg-elevated: #373a4f;
            --fg: #f8f8f2;
            --fg-muted: #6272a4;
            --purple: #bd93f9;
            --pink: #ff79c6;
            --cyan: #8be9fd;
            --green: #50fa7b;
            --yellow: #f1fa8c;
            --shadow: 0 4px 20px rgba(0,0,0,0.5);
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: 'JetBrains Mono', monospace;
            background: var(--bg);
            color: var(--fg);
            height: 100vh;
            display: flex;
            flex-direction: column;
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, var(--bg-tertiary), var(--bg-secondary));
            padding: 0.6rem 1.25rem;
            display: flex;
            justify-content: space-between;
            align-items: center;
            border-bottom: 2px solid var(--purple);
            box-shadow: var(--shadow);
        }
        h1 { font-size: 1.1rem; font-weight: 600; }
        h1 span { background: linear-gradient(90deg, var(--purple), var(--pink)); -webkit-background-clip: text; -webkit-text-fill-color: transparent; }
        .toolbar { display: flex; gap: 0.6rem; align-items: center; }
        button {
            font-family: inherit; font-size: 0.7rem;
            padding: 0.4rem 0.7rem; border: none; border-radius: 6px;
            cursor: pointer; background: var(--bg); color: var(--fg-muted);
            transition: all 0.15s ease;
        }
        button:hover { background: var(--bg-elevated); color: var(--fg); }
        button.active { background: linear-gradient(135deg, var(--purple), var(--pink)); color: var(--bg); }
        #search-input {
            font-family: inherit; font-size: 0.7rem;
            padding: 0.4rem 0.7rem; background: var(--bg); color: var(--fg);
            border: 1px solid var(--bg-secondary); border-radius: 6px; width: 200px;
        }
        #search-input:focus { outline: none; border-color: var(--purple); }
        main { flex: 1; display: flex; overflow: hidden; position: relative; }
        #graph-container { flex: 1; position: relative; }
        .overlay-stats {
            position: absolute; top: 0.75rem; left: 0.75rem;
            background: var(--bg-secondary); padding: 0.5rem 0.75rem;
            border-radius: 8px; font-size: 0.65rem; color: var(--fg-muted);
            z-index: 10; display: flex; gap: 1rem; box-shadow: var(--shadow);
        }
        .overlay-stats .stat-value { color: var(--cyan); font-weight: 600; }
        #sidebar {
            width: 300px;
            background: linear-gradient(180deg, var(--bg-secondary) 0%%, var(--bg) 100%%);
            border-left: 2px solid var(--purple);
            overflow-y: auto; padding: 1rem;
            display: flex; flex-direction: column; gap: 1rem;
        }
        .panel { background: var(--bg-tertiary); border-radius: 10px; padding: 0.75rem; }
        .panel-title {
            font-size: 0.6rem; font-weight: 600; color: var(--purple);
            text-transform: uppercase; letter-spacing: 1px; margin-bottom: 0.6rem;
        }
        .legend-item {
            display: flex; align-items: center; gap: 0.4rem;
            font-size: 0.65rem; color: var(--fg-muted);
            padding: 0.25rem 0.4rem; border-radius: 4px; cursor: pointer;
        }
        .legend-item:hover { background: var(--bg-elevated); color: var(--fg); }
        .legend-item.locked { background: var(--bg-elevated); color: var(--fg); outline: 1px solid var(--purple); }
        .legend-dot { width: 10px; height: 10px; border-radius: 50%%; flex-shrink: 0; }
        .legend-line { width: 14px; height: 3px; border-radius: 2px; flex-shrink: 0; }
        #node-detail { display: none; }
        #node-detail.visible { display: block; }
        .detail-name { font-size: 0.8rem; font-weight: 700; color: var(--cyan); margin-bottom: 0.4rem; }
        .detail-msg { font-size: 0.65rem; line-height: 1.5; white-space: pre-wrap; max-height: 220px; overflow-y: auto; margin-bottom: 0.5rem; }
        .detail-sessions { font-size: 0.55rem; color: var(--fg-muted); }
        .detail-sessions span { color: var(--yellow); }
        .no-selection { text-align: center; padding: 1.5rem 0.75rem; color: var(--fg-muted); font-size: 0.65rem; }
        footer {
            background: var(--bg-tertiary); padding: 0.4rem 1rem;
            font-size: 0.55rem; color: var(--fg-muted);
            display: flex; justify-content: space-between;
        }
        .context-menu {
            position: fixed; background: var(--bg-elevated);
            border: 1px solid var(--purple); border-radius: 8px;
            padding: 0.35rem 0; z-index: 1000; min-width: 180px;
            box-shadow: var(--shadow); display: none;
        }
        .context-menu.visible { display: block; }
        .context-menu-item { padding: 0.45rem 0.85rem; font-size: 0.65rem; cursor: pointer; }
        .context-menu-item:hover { background: var(--bg-secondary); }
    </style>
</head>
<body>
    <header>
        <h1><span>%s</span> Timeline</h1>
        <div class="toolbar">
            <input type="text" id="search-input" placeholder="Search messages...">
            <button id="btn-rotate" title="Rotate layout">Rotate</button>
            <button id="btn-fit" title="Fit view">Fit</button>
        </div>
    </header>
    <main>
        <div id="graph-container">
            <div class="overlay-stats">
                <div class="stat"><span class="stat-value">%d</span> messages</div>
                <div class="stat"><span class="stat-value">%d</span> edges</div>
            </div>
        </div>
        <div id="sidebar">
            <div class="panel">
                <div class="panel-title">Legend</div>
                <div id="legend"></div>
            </div>
            <div class="panel">
                <div class="panel-title">Selected Message</div>
                <div id="node-detail">
                    <div class="detail-name" id="detail-name">-</div>
                    <div class="detail-msg" id="detail-msg">-</div>
                    <div class="detail-sessions" id="detail-sessions"></div>
                </div>
                <div class="no-selection" id="no-selection">Click a message node</div>
            </div>
        </div>
    </main>
    <footer>
        <div>Generated %s | Hash: %s</div>
        <div>%d sessions deduplicated</div>
    </footer>
    <div class="context-menu" id="context-menu"></div>
    <script src="https://unpkg.com/force-graph@1.43.5/dist/force-graph.min.js"></script>
    <script>
const DATA = %s;
let dagMode = '%s';

const DIM = '#44475a40';
const container = document.getElementById('graph-container');

// Highlight state mirrors the app: one highlight slot, at most one locked
// legend selector. Hover previews lose to the lock.
let highlightSelector = null;
let lockedSelector = null;

function selectorMatchesNode(sel, n) {
    if (!sel) return false;
    if (sel.startsWith('name:')) return n.name === sel.slice(5);
    if (sel.startsWith('search:')) {
        const q = sel.slice(7).toLowerCase();
        if (!q) return false;
        return n.name.toLowerCase().includes(q) || n.msg.toLowerCase().includes(q);
    }
    return false;
}
function selectorMatchesLink(sel, l) {
    if (!sel) return false;
    if (sel.startsWith('color:')) return l.color === sel.slice(6);
    return false;
}

const Graph = ForceGraph()(container)
    .graphData(JSON.parse(JSON.stringify(DATA)))
    .backgroundColor('transparent')
    .nodeId('id')
    .dagMode(dagMode)
    .dagLevelDistance(60)
    .nodeLabel(n => n.name + ': ' + n.msg.slice(0, 120))
    .nodeColor(n => {
        if (!highlightSelector) return n.color;
        return selectorMatchesNode(highlightSelector, n) ? '#f8f8f2' : n.color + '40';
    })
    .nodeVal(n => n.is_bookmark ? 9 : 5)
    .linkColor(l => {
        if (highlightSelector && selectorMatchesLink(highlightSelector, l)) return '#f8f8f2';
        return l.color || DIM;
    })
    .linkWidth(l => highlightSelector && selectorMatchesLink(highlightSelector, l) ? 2.5 : 1)
    .linkDirectionalArrowLength(4)
    .linkDirectionalArrowRelPos(1)
    .onNodeClick(node => {
        showDetail(node);
        if (node.sessions.length > 1) showSessionMenu(node);
        else hideSessionMenu();
    })
    .onBackgroundClick(() => hideSessionMenu());

function applyHighlight(sel) {
    highlightSelector = sel;
    Graph.nodeColor(Graph.nodeColor());
    Graph.linkColor(Graph.linkColor());
}
function restoreHighlight() { applyHighlight(lockedSelector); }

// Legend
const legendEl = document.getElementById('legend');
DATA.legend.forEach(entry => {
    const item = document.createElement('div');
    item.className = 'legend-item';
    const swatch = document.createElement('div');
    swatch.className = entry.kind === 'node' ? 'legend-dot' : 'legend-line';
    swatch.style.background = entry.color;
    const label = document.createElement('span');
    label.textContent = entry.label;
    item.appendChild(swatch);
    item.appendChild(label);
    item.onmouseenter = () => { if (lockedSelector !== entry.selector) applyHighlight(entry.selector); };
    item.onmouseleave = () => { if (lockedSelector !== entry.selector) restoreHighlight(); };
    item.onclick = () => {
        if (lockedSelector === entry.selector) {
            lockedSelector = null;
            item.classList.remove('locked');
            applyHighlight(null);
            return;
        }
        legendEl.querySelectorAll('.legend-item').forEach(el => el.classList.remove('locked'));
        lockedSelector = entry.selector;
        item.classList.add('locked');
        applyHighlight(entry.selector);
    };
    legendEl.appendChild(item);
});

// Search shares the highlight slot: last writer wins, lock state untouched.
document.getElementById('search-input').oninput = e => {
    const q = e.target.value.trim();
    if (!q) { restoreHighlight(); return; }
    applyHighlight('search:' + q);
};

// Detail drawer
function showDetail(node) {
    document.getElementById('detail-name').textContent = node.name || '(group chat)';
    document.getElementById('detail-msg').textContent = node.msg;
    document.getElementById('detail-sessions').innerHTML =
        'in <span>' + node.sessions.length + '</span> session(s): ' + node.sessions.join(', ');
    document.getElementById('node-detail').classList.add('visible');
    document.getElementById('no-selection').style.display = 'none';
}

// Session disambiguation menu for shared nodes
function showSessionMenu(node) {
    const menu = document.getElementById('context-menu');
    menu.innerHTML = '';
    node.sessions.forEach(s => {
        const item = document.createElement('div');
        item.className = 'context-menu-item';
        item.textContent = s + ' @ message ' + node.depth;
        item.onclick = () => hideSessionMenu();
        menu.appendChild(item);
    });
    menu.style.left = '40%%';
    menu.style.top = '30%%';
    menu.classList.add('visible');
}
function hideSessionMenu() { document.getElementById('context-menu').classList.remove('visible'); }

// Rotate swaps LR and TB
document.getElementById('btn-rotate').onclick = () => {
    dagMode = dagMode === 'lr' ? 'td' : 'lr';
    Graph.dagMode(dagMode);
    setTimeout(() => Graph.zoomToFit(400, 40), 150);
};
document.getElementById('btn-fit').onclick = () => Graph.zoomToFit(400, 40);

document.onkeydown = e => {
    if (e.target.tagName === 'INPUT') return;
    if (e.key.toLowerCase() === 'r') document.getElementById('btn-rotate').click();
    if (e.key.toLowerCase() === 'f') document.getElementById('btn-fit').click();
};

setTimeout(() => Graph.zoomToFit(400, 40), 800);
    </script>
</body>
</html>`, title, title, nodeCount, edgeCount, timestamp, dataHash, sessionCount(dataJSON), dataJSON, dagMode)
}

// sessionCount extracts the distinct session count from the payload for the
// footer line.
func sessionCount(dataJSON string) int {
	var payload struct {
		Nodes []htmlNode `json:"nodes"`
	}
	if err := json.Unmarshal([]byte(dataJSON), &payload); err != nil {
		return 0
	}
	seen := make(map[string]bool)
	for _, n := range payload.Nodes {
		for _, s := range n.Sessions {
			seen[s] = true
		}
	}
	return len(seen)
}
