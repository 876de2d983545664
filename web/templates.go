package web

import (
	"html/template"
	"net/http"
)

const htmlTemplate = `
<!DOCTYPE html>
<html>
<head>
    <title>Tiny Tapeout Commander</title>
    <meta charset="utf-8">
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; background-color: #f5f5f5; }
        .container { max-width: 1200px; margin: 0 auto; }
        .card { background: white; padding: 20px; margin: 10px 0; border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        .status { display: flex; justify-content: space-between; flex-wrap: wrap; }
        .device { flex: 1; min-width: 300px; margin: 5px; }
        .connected { color: #4CAF50; font-weight: bold; }
        .disconnected { color: #f44336; font-weight: bold; }
        button { background-color: #2196F3; color: white; border: none; padding: 10px 20px; margin: 5px; border-radius: 4px; cursor: pointer; }
        button:hover { background-color: #1976D2; }
        button:disabled { background-color: #ccc; cursor: not-allowed; }
        .commands { display: grid; grid-template-columns: repeat(auto-fit, minmax(250px, 1fr)); gap: 10px; }
        .command-group { border: 1px solid #ddd; padding: 15px; border-radius: 4px; }
        input, select { padding: 8px; margin: 5px; border: 1px solid #ddd; border-radius: 4px; }
        .pins span { display: inline-block; width: 22px; text-align: center; font-family: monospace; }
        .on { background: #4CAF50; color: white; }
        .log, .terminal { height: 200px; overflow-y: scroll; background-color: #000; color: #0f0; padding: 10px; font-family: monospace; font-size: 12px; white-space: pre-wrap; }
        h1 { color: #333; text-align: center; }
        h2 { color: #555; border-bottom: 2px solid #2196F3; padding-bottom: 5px; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Tiny Tapeout Commander</h1>

        <div class="card">
            <h2>Board</h2>
            <div class="status">
                <div class="device">
                    <p>Status: <span id="board-status" class="disconnected">loading...</span></p>
                    <p>Port: <span id="board-port">-</span> Phase: <span id="board-phase">-</span></p>
                    <p>Firmware: <span id="board-fw">-</span> Shuttle: <span id="board-shuttle">-</span></p>
                </div>
                <div class="device">
                    <p>Design: <span id="board-design">-</span></p>
                    <p>Clock: <span id="board-clock">-</span> Hz</p>
                    <p class="pins">uo_out: <span id="uo-out"></span></p>
                </div>
            </div>
            <button onclick="reconnect()">Reconnect</button>
            <button onclick="copyState()">Copy state</button>
        </div>

        <div class="card">
            <h2>Control</h2>
            <div class="commands">
                <div class="command-group">
                    <h3>Project</h3>
                    <select id="design"></select>
                    <button onclick="selectDesign()">Select</button>
                    <div>
                        <input type="number" id="clock" value="10000000" min="1">
                        <button onclick="command({action: 'clock', hz: +document.getElementById('clock').value})">Set clock</button>
                    </div>
                    <button onclick="command({action: 'manual_clock'})">Single clock</button>
                    <button onclick="command({action: 'reset'})">Reset</button>
                </div>
                <div class="command-group">
                    <h3>ui_in</h3>
                    <label><input type="checkbox" id="ui-in-enable" onchange="command({action: 'ui_in_enable', enabled: this.checked})"> Drive from RP2040</label>
                    <div id="ui-in"></div>
                    <label><input type="checkbox" onchange="command({action: 'monitor', enabled: this.checked})"> Monitor uo_out</label>
                </div>
                <div class="command-group">
                    <h3>Board</h3>
                    <button onclick="command({action: 'factory_test'})">Factory test</button>
                    <button onclick="command({action: 'read_rom'})">Read ROM</button>
                    <button onclick="command({action: 'bootloader'})">Bootloader</button>
                </div>
                <div class="command-group">
                    <h3>Flash</h3>
                    <form id="flash-form" onsubmit="flash(event)">
                        <input type="file" name="file">
                        <input type="text" name="offset" placeholder="offset, e.g. 0x100000">
                        <button type="submit">Flash</button>
                    </form>
                    <div id="flash-progress"></div>
                </div>
            </div>
        </div>

        <div class="card">
            <h2>Terminal</h2>
            <button onclick="attach('repl')">REPL</button>
            <button onclick="attach('uart')">UART</button>
            <button onclick="detach()">Detach</button>
            <div id="terminal" class="terminal" tabindex="0" onkeypress="terminalKey(event)"></div>
        </div>

        <div class="card">
            <h2>Device log</h2>
            <div id="device-log" class="log"></div>
        </div>
    </div>

    <script>
        let projects = [];

        function render(data) {
            const st = data.state || {};
            document.getElementById('board-status').textContent = data.connected ? 'connected' : 'disconnected';
            document.getElementById('board-status').className = data.connected ? 'connected' : 'disconnected';
            document.getElementById('board-port').textContent = data.port || '-';
            document.getElementById('board-phase').textContent = data.phase;
            document.getElementById('board-fw').textContent = st.firmware_version || '-';
            document.getElementById('board-shuttle').textContent = st.shuttle_id || '-';
            document.getElementById('board-design').textContent = st.selected_design;
            document.getElementById('board-clock').textContent = st.clock_hz;
            document.getElementById('ui-in-enable').checked = !!st.ui_in_enabled;
            const pins = document.getElementById('uo-out');
            pins.innerHTML = '';
            for (let bit = 7; bit >= 0; bit--) {
                const pin = document.createElement('span');
                pin.textContent = bit;
                if ((st.uo_out >> bit) & 1) pin.className = 'on';
                pins.appendChild(pin);
            }
            if (data.shuttle && data.shuttle.projects && data.shuttle.projects.length !== projects.length) {
                projects = data.shuttle.projects;
                const sel = document.getElementById('design');
                sel.innerHTML = '';
                projects.forEach(p => {
                    const opt = document.createElement('option');
                    opt.value = p.address;
                    opt.textContent = p.address + ' ' + p.title;
                    sel.appendChild(opt);
                });
            }
        }

        function updateStatus() {
            fetch('/status').then(r => r.json()).then(render).catch(err => addLog('status: ' + err));
        }

        function command(body) {
            return fetch('/command', {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify(body)})
                .then(r => r.ok ? r.json().then(render) : r.text().then(t => addLog('error: ' + t)));
        }

        function selectDesign() {
            command({action: 'select', index: +document.getElementById('design').value});
        }

        function buildUIIn() {
            const box = document.getElementById('ui-in');
            for (let bit = 7; bit >= 0; bit--) {
                const cb = document.createElement('input');
                cb.type = 'checkbox';
                cb.dataset.bit = bit;
                cb.onchange = writeUIIn;
                box.appendChild(cb);
            }
        }

        function writeUIIn() {
            let value = 0;
            document.querySelectorAll('#ui-in input').forEach(cb => { if (cb.checked) value |= 1 << cb.dataset.bit; });
            command({action: 'ui_in', value: value});
        }

        function reconnect() {
            fetch('/reconnect', {method: 'POST'}).then(r => r.text()).then(t => { addLog(t); updateStatus(); });
        }

        function copyState() {
            fetch('/state/copy', {method: 'POST'}).then(r => r.text()).then(t => addLog('copied: ' + t));
        }

        function flash(event) {
            event.preventDefault();
            const form = new FormData(document.getElementById('flash-form'));
            document.getElementById('flash-progress').textContent = 'flashing...';
            fetch('/flash', {method: 'POST', body: form})
                .then(r => r.ok ? r.json().then(p => 'done: ' + p.written + ' bytes') : r.text())
                .then(t => { document.getElementById('flash-progress').textContent = t; });
        }

        function attach(mode) {
            fetch('/terminal/attach?mode=' + mode, {method: 'POST'}).then(r => r.ok ? r.json().then(render) : r.text().then(addLog));
            document.getElementById('terminal').focus();
        }

        function detach() {
            fetch('/terminal/detach', {method: 'POST'}).then(r => r.ok ? r.json().then(render) : r.text().then(addLog));
        }

        function terminalKey(event) {
            const key = event.key === 'Enter' ? '\r' : event.key;
            fetch('/terminal/write', {method: 'POST', body: key});
            event.preventDefault();
        }

        function connectStreams() {
            const logs = new EventSource('/logs/stream');
            logs.onmessage = e => {
                const entry = JSON.parse(e.data);
                addLog((entry.sent ? '> ' : '< ') + entry.text);
            };
            const events = new EventSource('/events/stream');
            events.onmessage = e => {
                const ev = JSON.parse(e.data);
                if (ev.type === 'flash') document.getElementById('flash-progress').textContent = ev.message;
                if (ev.type === 'violation') addLog('! ' + ev.message);
                if (ev.type === 'state' || ev.type === 'phase' || ev.type === 'closed') updateStatus();
            };
            const term = new EventSource('/terminal/stream');
            term.onmessage = e => {
                const ev = JSON.parse(e.data);
                const out = document.getElementById('terminal');
                out.textContent += atob(ev.terminal || '');
                out.scrollTop = out.scrollHeight;
            };
            logs.onerror = () => {
                logs.close(); events.close(); term.close();
                setTimeout(connectStreams, 5000);
            };
        }

        function addLog(message) {
            const log = document.getElementById('device-log');
            const entry = document.createElement('div');
            entry.textContent = '[' + new Date().toLocaleTimeString() + '] ' + message;
            log.appendChild(entry);
            log.scrollTop = log.scrollHeight;
            while (log.children.length > {{.HistorySize}}) {
                log.removeChild(log.firstChild);
            }
        }

        buildUIIn();
        setInterval(updateStatus, 2000);
        updateStatus();
        connectStreams();
    </script>
</body>
</html>
`

var indexTemplate = template.Must(template.New("index").Parse(htmlTemplate))

type indexData struct {
	HistorySize int
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	indexTemplate.Execute(w, indexData{HistorySize: s.historySize})
}
