package httpapi

import (
	"bytes"
	"html/template"
	"time"

	"kombatmoto/backend/internal/domain"
	"kombatmoto/backend/internal/money"
)

var promissoryTemplate = template.Must(template.New("promissory").Funcs(template.FuncMap{
	"brl":  money.FormatBRL,
	"date": func(t time.Time) string { return t.Format("02/01/2006") },
}).Parse(`<!DOCTYPE html>
<html lang="pt-BR">
<head>
<meta charset="utf-8">
<title>Nota Promissória {{.Number}}</title>
<style>
body { font-family: serif; margin: 2cm; }
.note { border: 2px solid #000; padding: 1.5em; }
.head { display: flex; justify-content: space-between; font-weight: bold; }
.sign { margin-top: 4em; border-top: 1px solid #000; width: 60%; text-align: center; }
</style>
</head>
<body>
<div class="note">
  <div class="head"><span>NOTA PROMISSÓRIA Nº {{.Number}}</span><span>R$ {{brl .Amount}}</span></div>
  <p>Vencimento: {{date .DueDate}}</p>
  <p>No dia {{date .DueDate}} pagarei por esta única via de NOTA PROMISSÓRIA a
  <strong>{{.Payee}}</strong> ou à sua ordem a quantia de
  <strong>{{.AmountInWords}}</strong> em moeda corrente deste país.</p>
  <p>Emitente: {{.Debtor}}{{if .DebtorCPF}} - CPF {{.DebtorCPF}}{{end}}</p>
  {{if .DebtorAddress}}<p>Endereço: {{.DebtorAddress}}</p>{{end}}
  <p>Data de emissão: {{date .IssueDate}}</p>
  <div class="sign">Assinatura do emitente</div>
</div>
</body>
</html>
`))

func renderPromissoryNote(note domain.PromissoryNote) ([]byte, error) {
	var buf bytes.Buffer
	if err := promissoryTemplate.Execute(&buf, note); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
