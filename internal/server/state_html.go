package server

// stateBrowserHTML is the debug page at /debug/state. It polls /api/state and
// shows every store field plus a table of open windows.
const stateBrowserHTML = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>State Browser</title>
<style>
* { box-sizing: border-box; margin: 0; padding: 0; }
body { font-family: system-ui, -apple-system, sans-serif; padding: 16px; background: #fafafa; color: #333; }
h1 { font-size: 1.2em; font-weight: 600; margin-bottom: 12px; }
h2 { font-size: 1em; font-weight: 600; margin: 16px 0 8px; }

/* Toolbar */
.toolbar { display: flex; align-items: center; gap: 12px; margin-bottom: 12px; padding: 8px 12px; background: #fff; border: 1px solid #ddd; border-radius: 6px; }
.toolbar label { font-size: 0.85em; cursor: pointer; display: flex; align-items: center; gap: 4px; }
.toolbar select { font-size: 0.85em; padding: 2px 4px; }
.toolbar button { font-size: 0.85em; padding: 4px 12px; border: 1px solid #ccc; border-radius: 4px; background: #fff; cursor: pointer; }
.toolbar button:hover { background: #f0f0f0; }

/* Table */
.table-wrap { overflow-x: auto; background: #fff; border: 1px solid #ddd; border-radius: 6px; }
table { border-collapse: collapse; font-size: 0.85em; width: 100%; }
thead { background: #f5f5f5; }
th { text-align: left; padding: 6px 10px; font-weight: 600; border-bottom: 2px solid #ddd; white-space: nowrap; }
td { padding: 4px 10px; border-bottom: 1px solid #eee; white-space: nowrap; vertical-align: top; }
tr:hover { background: #f8f8ff; }
.col-key { font-weight: 500; }
.col-type { color: #0066cc; font-weight: 600; }
.col-value { color: #228b22; font-family: monospace; max-width: 600px; overflow: hidden; text-overflow: ellipsis; }
tr.focused td { background: #f0f8ff; }

.status { font-size: 0.8em; color: #888; margin-top: 8px; }
</style>
</head>
<body>

<h1>State Browser</h1>

<div class="toolbar">
  <button id="refreshBtn">Refresh</button>
  <label><input type="checkbox" id="pollToggle"> Poll</label>
  <select id="pollInterval">
    <option value="1000">1s</option>
    <option value="2000" selected>2s</option>
    <option value="5000">5s</option>
  </select>
</div>

<h2>Fields</h2>
<div class="table-wrap">
  <table>
    <thead><tr><th>Key</th><th>Type</th><th>Value</th></tr></thead>
    <tbody id="fieldsBody"></tbody>
  </table>
</div>

<h2>Windows</h2>
<div class="table-wrap">
  <table>
    <thead><tr><th>ID</th><th>App</th><th>Title</th><th>Z</th><th>Bounds</th><th>State</th></tr></thead>
    <tbody id="windowsBody"></tbody>
  </table>
</div>

<div class="status" id="status"></div>

<script>
(function() {
  'use strict';

  let pollTimer = null;

  function cell(text, cls) {
    const td = document.createElement('td');
    if (cls) td.className = cls;
    td.textContent = text;
    return td;
  }

  function typeOf(v) {
    if (v === null) return 'null';
    if (Array.isArray(v)) return 'array[' + v.length + ']';
    return typeof v;
  }

  function summary(key, v) {
    if (key === 'fileSystem') return '(tree)';
    return JSON.stringify(v);
  }

  function render(state) {
    const fields = document.getElementById('fieldsBody');
    fields.innerHTML = '';
    Object.keys(state).sort().forEach(function(key) {
      const tr = document.createElement('tr');
      tr.appendChild(cell(key, 'col-key'));
      tr.appendChild(cell(typeOf(state[key]), 'col-type'));
      tr.appendChild(cell(summary(key, state[key]), 'col-value'));
      fields.appendChild(tr);
    });

    const windows = document.getElementById('windowsBody');
    windows.innerHTML = '';
    (state.windows || []).forEach(function(w) {
      const tr = document.createElement('tr');
      if (w.isFocused) tr.className = 'focused';
      tr.appendChild(cell(w.id));
      tr.appendChild(cell(w.appType));
      tr.appendChild(cell(w.title || ''));
      tr.appendChild(cell(w.zIndex));
      tr.appendChild(cell([w.x, w.y, w.width, w.height].map(function(n) { return n === undefined ? '-' : Math.round(n); }).join(', ')));
      const flags = [];
      if (w.isMinimized) flags.push('minimized');
      if (w.isMaximized) flags.push('maximized');
      if (w.isFocused) flags.push('focused');
      tr.appendChild(cell(flags.join(' ')));
      windows.appendChild(tr);
    });
  }

  function refresh() {
    fetch('/api/state')
      .then(function(r) { return r.json(); })
      .then(function(state) {
        render(state);
        document.getElementById('status').textContent = 'Updated ' + new Date().toLocaleTimeString();
      })
      .catch(function(err) {
        document.getElementById('status').textContent = 'Error: ' + err;
      });
  }

  function updatePoll() {
    if (pollTimer) {
      clearInterval(pollTimer);
      pollTimer = null;
    }
    if (document.getElementById('pollToggle').checked) {
      pollTimer = setInterval(refresh, parseInt(document.getElementById('pollInterval').value, 10));
    }
  }

  document.getElementById('refreshBtn').addEventListener('click', refresh);
  document.getElementById('pollToggle').addEventListener('change', updatePoll);
  document.getElementById('pollInterval').addEventListener('change', updatePoll);
  refresh();
})();
</script>
</body>
</html>
`
