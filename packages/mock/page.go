package mock

import "html/template"

var loginTemplate = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="et">
<head>
<meta charset="utf-8">
<title>Sisene</title>
</head>
<body>
<main class="login">
<h1>Sisene</h1>
<p>Sessioon puudub. Logi sisse, et näha vestluste ajalugu.</p>
</main>
</body>
</html>
`))

// historyTemplate renders the history screen. The validation message uses
// the hidden attribute alone so no stylesheet rule overrides it.
var historyTemplate = template.Must(template.New("history").Parse(`<!DOCTYPE html>
<html lang="et">
<head>
<meta charset="utf-8">
<title>Vestluste ajalugu</title>
<style>
body { font-family: sans-serif; margin: 1.5rem; }
.card { border: 1px solid #d0d5dd; border-radius: 6px; margin-bottom: 1rem; }
.card__body { display: flex; flex-wrap: wrap; gap: .75rem; padding: 1rem; align-items: flex-start; }
.select { position: relative; }
.select__trigger { border: 1px solid #98a2b3; padding: .35rem .75rem; cursor: pointer; min-width: 8rem; }
.select__menu { position: absolute; z-index: 1; background: #fff; border: 1px solid #98a2b3; list-style: none; margin: 0; padding: .25rem 0; }
.select__option label { display: block; padding: .25rem .75rem; white-space: nowrap; }
.validation-error-message { color: #b42318; width: 100%; margin: 0; }
.data-table__scrollWrapper { overflow-x: auto; }
table.data-table { border-collapse: collapse; min-width: 60rem; }
table.data-table th, table.data-table td { border-bottom: 1px solid #eaecf0; padding: .4rem .6rem; text-align: left; white-space: nowrap; }
</style>
</head>
<body>
<h1>Vestluste ajalugu</h1>
<div class="card">
  <div class="card__body">
    <input type="text" name="startDate" placeholder="PP.KK.AAAA" autocomplete="off">
    <input type="text" name="endDate" placeholder="PP.KK.AAAA" autocomplete="off">
    <div class="select">
      <div class="select__trigger" role="button" aria-expanded="false">Vali</div>
      <ul class="select__menu" hidden>
        {{- range .Columns}}
        <li class="select__option"><label><input type="checkbox" value="{{.Key}}"> {{.Label}}</label></li>
        {{- end}}
      </ul>
    </div>
    <input type="search" class="search" placeholder="Otsi üle vestluste...">
    <p class="validation-error-message" role="alert" hidden></p>
  </div>
</div>
<div class="card">
  <div class="data-table__scrollWrapper">
    <table class="data-table">
      <thead>
        <tr>
          {{- range .Columns}}
          <th>{{.Label}}</th>
          {{- end}}
          <th class="data-table__detail" aria-label="Detailid"></th>
        </tr>
      </thead>
      <tbody>
        {{- range .Chats}}
        <tr>
          <td>{{.StartTime}}</td>
          <td>{{.EndTime}}</td>
          <td>{{.CustomerSupport}}</td>
          <td>{{.Customer}}</td>
          <td>{{.Channel}}</td>
          <td>{{.Rating}}</td>
          <td><a href="/api/chats/{{.ID}}">Vaata</a></td>
        </tr>
        {{- end}}
      </tbody>
    </table>
  </div>
</div>
<script>
(function () {
  const columns = {{.ColumnsJSON}};
  const startInput = document.querySelector('input[name="startDate"]');
  const endInput = document.querySelector('input[name="endDate"]');
  const message = document.querySelector('.validation-error-message');
  const trigger = document.querySelector('.select__trigger');
  const menu = document.querySelector('.select__menu');
  const search = document.querySelector('input.search');
  const headRow = document.querySelector('table.data-table thead tr');
  const body = document.querySelector('table.data-table tbody');
  const datePattern = /^\d{2}\.\d{2}\.\d{4}$/;
  let rows = null;
  let timer = null;
  let seq = 0;

  function validDate(s) {
    if (!datePattern.test(s)) return false;
    const [d, m, y] = s.split('.').map(Number);
    const dt = new Date(Date.UTC(y, m - 1, d));
    return dt.getUTCFullYear() === y && dt.getUTCMonth() === m - 1 && dt.getUTCDate() === d;
  }

  function validate(input) {
    const v = input.value.trim();
    if (v === '' || validDate(v)) {
      message.hidden = true;
      message.textContent = '';
      return true;
    }
    input.value = '';
    message.textContent = 'Invalid date format, expected DD.MM.YYYY';
    message.hidden = false;
    return false;
  }

  function visibleColumns() {
    const keys = Array.from(menu.querySelectorAll('input[type="checkbox"]:checked')).map(cb => cb.value);
    return keys.length === 0 ? columns : columns.filter(c => keys.includes(c.key));
  }

  function cell(tag, text) {
    const el = document.createElement(tag);
    el.textContent = text;
    return el;
  }

  function render() {
    const cols = visibleColumns();
    const detail = cell('th', '');
    detail.className = 'data-table__detail';
    detail.setAttribute('aria-label', 'Detailid');
    headRow.replaceChildren(...cols.map(c => cell('th', c.label)), detail);
    if (rows === null) return;
    body.replaceChildren(...rows.map(r => {
      const tr = document.createElement('tr');
      cols.forEach(c => tr.appendChild(cell('td', String(r[c.key]))));
      const link = cell('a', 'Vaata');
      link.href = '/api/chats/' + r.id;
      const td = document.createElement('td');
      td.appendChild(link);
      tr.appendChild(td);
      return tr;
    }));
  }

  function query() {
    const p = new URLSearchParams();
    if (validDate(startInput.value)) p.set('start', startInput.value);
    if (validDate(endInput.value)) p.set('end', endInput.value);
    if (search.value.trim() !== '') p.set('search', search.value.trim());
    return p.toString();
  }

  async function load() {
    const id = ++seq;
    const res = await fetch('/api/chats?' + query(), { credentials: 'same-origin' });
    if (!res.ok || id !== seq) return;
    const data = await res.json();
    if (id !== seq) return;
    rows = data.chats;
    render();
  }

  trigger.addEventListener('click', () => {
    menu.hidden = !menu.hidden;
    trigger.setAttribute('aria-expanded', String(!menu.hidden));
  });
  menu.addEventListener('change', render);
  [startInput, endInput].forEach(input => {
    input.addEventListener('blur', () => {
      if (validate(input)) load();
    });
  });
  search.addEventListener('input', () => {
    clearTimeout(timer);
    timer = setTimeout(load, 300);
  });
})();
</script>
</body>
</html>
`))
