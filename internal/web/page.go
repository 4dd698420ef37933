package web

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/thebranchdriftcatalyst/ups-dashboard/internal/display"
)

type fieldGroup struct {
	Name   string
	Fields []display.Field
}

type indicatorGroup struct {
	Name       string
	Indicators []display.Indicator
}

type pageData struct {
	FieldGroups     []fieldGroup
	IndicatorGroups []indicatorGroup
	ButtonID        string
	SpinnerID       string
	PowerPresentID  string
}

var indicatorGroupNames = map[string]string{
	"device":  "Device status",
	"charge":  "Charge status",
	"monitor": "Monitor status",
}

// renderPage builds the dashboard markup from the field catalog
func renderPage() []byte {
	data := pageData{
		ButtonID:       display.ButtonCapEsr,
		SpinnerID:      display.ConnectionSpinner,
		PowerPresentID: "checkDevPowerPresent",
	}

	for _, f := range display.Fields {
		n := len(data.FieldGroups)
		if n == 0 || data.FieldGroups[n-1].Name != f.Group {
			data.FieldGroups = append(data.FieldGroups, fieldGroup{Name: f.Group})
			n++
		}
		data.FieldGroups[n-1].Fields = append(data.FieldGroups[n-1].Fields, f)
	}
	for _, ind := range display.Indicators {
		name := indicatorGroupNames[ind.Register]
		n := len(data.IndicatorGroups)
		if n == 0 || data.IndicatorGroups[n-1].Name != name {
			data.IndicatorGroups = append(data.IndicatorGroups, indicatorGroup{Name: name})
			n++
		}
		data.IndicatorGroups[n-1].Indicators = append(data.IndicatorGroups[n-1].Indicators, ind)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

var pageHTML = renderPage()

// Page serves the dashboard
func (s *Server) Page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(pageHTML)
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>UPS Dashboard</title>
  <style>
    :root {
      --bg-primary: #0d1117;
      --bg-secondary: #161b22;
      --border-color: #30363d;
      --text-primary: #f0f6fc;
      --text-secondary: #8b949e;
      --accent-blue: #58a6ff;
      --accent-green: #3fb950;
      --accent-red: #f85149;
    }
    * { box-sizing: border-box; }
    body {
      margin: 0;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif;
      background: var(--bg-primary);
      color: var(--text-primary);
    }
    header {
      display: flex;
      align-items: center;
      gap: 12px;
      padding: 12px 20px;
      background: var(--bg-secondary);
      border-bottom: 1px solid var(--border-color);
    }
    header h1 { font-size: 18px; margin: 0; flex: 1; }
    main {
      display: grid;
      grid-template-columns: repeat(auto-fill, minmax(280px, 1fr));
      gap: 16px;
      padding: 20px;
    }
    section {
      background: var(--bg-secondary);
      border: 1px solid var(--border-color);
      border-radius: 6px;
      padding: 12px 16px;
    }
    h2 { font-size: 14px; margin: 0 0 8px; color: var(--text-secondary); text-transform: uppercase; }
    .row { display: flex; justify-content: space-between; padding: 3px 0; }
    .row label { color: var(--text-secondary); }
    .value { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; }
    .unit { color: var(--text-secondary); margin-left: 4px; }
    .hidden { display: none !important; }
    .spinner {
      width: 16px; height: 16px;
      border: 2px solid var(--border-color);
      border-top-color: var(--accent-blue);
      border-radius: 50%;
      animation: spin 1s linear infinite;
    }
    @keyframes spin { to { transform: rotate(360deg); } }
    .banner {
      margin: 20px 20px 0;
      padding: 10px 16px;
      border-radius: 6px;
      background: var(--accent-red);
      font-weight: 600;
    }
    button {
      background: var(--accent-green);
      color: var(--bg-primary);
      border: none;
      border-radius: 6px;
      padding: 6px 12px;
      font-weight: 600;
      cursor: pointer;
    }
    button:disabled { opacity: 0.4; cursor: not-allowed; }
  </style>
</head>
<body>
  <header>
    <h1>UPS Dashboard</h1>
    <div id="{{.SpinnerID}}" class="spinner" title="Connecting to UPS"></div>
    <button id="{{.ButtonID}}" disabled>Start Cap/ESR measurement</button>
  </header>
  <div id="powerFailBanner" class="banner hidden">Input power lost, running on backup</div>
  <main>
{{- range .FieldGroups}}
    <section>
      <h2>{{.Name}}</h2>
  {{- range .Fields}}
      <div class="row"><label for="{{.ID}}">{{.Label}}</label><span><span class="value" id="{{.ID}}">-</span>{{if .Unit}}<span class="unit">{{.Unit}}</span>{{end}}</span></div>
  {{- end}}
    </section>
{{- end}}
{{- range .IndicatorGroups}}
    <section>
      <h2>{{.Name}}</h2>
  {{- range .Indicators}}
      <div class="row"><label for="{{.ID}}">{{.Label}}</label><input type="checkbox" id="{{.ID}}" disabled></div>
  {{- end}}
    </section>
{{- end}}
  </main>
  <script>
    const spinnerId = '{{.SpinnerID}}';
    const buttonId = '{{.ButtonID}}';
    const powerPresentId = '{{.PowerPresentID}}';
    let ws = null;
    let haveData = false;

    function apply(change) {
      const el = document.getElementById(change.id);
      if (!el) return;
      switch (change.kind) {
        case 'text':
          el.textContent = change.value;
          haveData = true;
          break;
        case 'checked':
          el.checked = change.value;
          break;
        case 'enabled':
          el.disabled = !change.value;
          break;
        case 'visible':
          el.classList.toggle('hidden', !change.value);
          break;
      }
    }

    function updateBanner() {
      const present = document.getElementById(powerPresentId);
      const banner = document.getElementById('powerFailBanner');
      banner.classList.toggle('hidden', !haveData || present.checked);
    }

    function connect() {
      ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
      ws.onmessage = (e) => {
        const msg = JSON.parse(e.data);
        (msg.changes || []).forEach(apply);
        updateBanner();
      };
      ws.onclose = () => {
        document.getElementById(spinnerId).classList.remove('hidden');
        document.getElementById(buttonId).disabled = true;
        setTimeout(connect, 2000);
      };
    }

    document.addEventListener('DOMContentLoaded', () => {
      document.getElementById(buttonId).addEventListener('click', () => {
        if (ws && ws.readyState === WebSocket.OPEN) {
          ws.send(JSON.stringify({ action: 'capesr' }));
        }
      });
      connect();
    });
  </script>
</body>
</html>
`))
