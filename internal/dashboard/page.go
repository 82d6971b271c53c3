package dashboard

import "html/template"

var errorCardTmpl = template.Must(template.New("error").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8"><title>{{.Title}}</title>
<style>
body{font-family:sans-serif;background:#fafafa;margin:2em}
.card{border:1px solid #e0b4b4;background:#fff6f6;color:#9f3a38;padding:1em 1.5em;border-radius:6px;max-width:720px}
.code{font-size:.8em;color:#888}
</style></head>
<body><div class="card">
<h3>{{.Status}} {{.Title}}</h3>
{{range .Messages}}<p>{{.}}</p>{{end}}
<p class="code">{{.Code}}</p>
</div></body></html>`))

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>StockCast</title>
<style>
body{font-family:sans-serif;margin:0;background:#f4f6f8}
header{background:#1f2d3d;color:#fff;padding:.8em 1.5em}
.controls{display:flex;gap:1.5em;align-items:center;padding:1em 1.5em;background:#fff;border-bottom:1px solid #ddd}
.tabs button{border:none;background:#e4e8ec;padding:.5em 1.2em;cursor:pointer}
.tabs button.active{background:#1f77b4;color:#fff}
#outlook{padding:.5em 1.5em;color:#333}
iframe{width:100%;height:640px;border:none;background:#fff}
</style>
</head>
<body>
<header><h2>StockCast</h2></header>
<div class="controls">
  <label>Asset
    <select id="symbol">{{range .Assets}}<option value="{{.}}">{{.}}</option>{{end}}</select>
  </label>
  <label>Model
    <select id="model">{{range .Models}}<option value="{{.}}"{{if eq (printf "%s" .) $.DefaultModel}} selected{{end}}>{{.}}</option>{{end}}</select>
  </label>
  <label>Forecast days
    <input id="days" type="range" min="7" max="90" step="1" value="{{.DefaultDays}}">
    <span id="days-value">{{.DefaultDays}}</span>
  </label>
  <div class="tabs">
    <button data-tab="history" class="active">Historical</button>
    <button data-tab="forecast">Forecast</button>
    <button data-tab="indicators">Indicators</button>
  </div>
</div>
<div id="outlook"></div>
<iframe id="chart"></iframe>
<script>
var tab = "history";
function params() {
  return "symbol=" + encodeURIComponent(document.getElementById("symbol").value) +
    "&model=" + encodeURIComponent(document.getElementById("model").value) +
    "&days=" + document.getElementById("days").value;
}
function refresh() {
  document.getElementById("chart").src = "/chart/" + tab + "?" + params();
  fetch("/api/outlook?" + params()).then(function (r) { return r.json(); }).then(function (body) {
    var el = document.getElementById("outlook");
    if (body.status !== 200) { el.textContent = ""; return; }
    var o = body.data;
    el.textContent = "Technical outlook: " + o.stance.label + " (" + o.total_score.toFixed(3) + ")" +
      (o.warning ? "  " + o.warning : "");
  });
}
document.querySelectorAll(".tabs button").forEach(function (b) {
  b.addEventListener("click", function () {
    document.querySelectorAll(".tabs button").forEach(function (x) { x.classList.remove("active"); });
    b.classList.add("active");
    tab = b.dataset.tab;
    refresh();
  });
});
document.getElementById("days").addEventListener("input", function (e) {
  document.getElementById("days-value").textContent = e.target.value;
});
["symbol", "model", "days"].forEach(function (id) {
  document.getElementById(id).addEventListener("change", refresh);
});
refresh();
</script>
</body>
</html>`))
