package smtpmail

import (
	"html/template"
	"strings"
	"time"

	"github.com/BearBump/StayScout/internal/models"
	"github.com/pkg/errors"
)

var newStaysTmpl = template.Must(template.New("newStays").Parse(`
<html>
<body style="font-family: Arial, sans-serif;">
  <h1 style="color:#2e86ab;">Cazări găsite pentru tine</h1>
  {{if .Criteria.Destination}}
  <div style="background:#e6f3ff;padding:12px;border-radius:8px;">
    <p><strong>Destinație:</strong> {{.Criteria.Destination}}</p>
    <p><strong>Buget maxim:</strong> {{printf "%.0f" .Criteria.MaxPrice}} {{.Criteria.Currency}}</p>
  </div>
  {{end}}
  {{range .Stays}}
  <div style="border:1px solid #ddd;margin:10px 0;padding:12px;border-radius:8px;">
    <div style="color:#2e86ab;font-size:18px;font-weight:bold;">{{.Title}}</div>
    <div style="color:#d73502;font-size:20px;font-weight:bold;">{{printf "%.0f" .Price}} {{.Currency}}</div>
    {{if .Rating}}<div style="color:#228b22;">Rating: {{printf "%.1f" .Rating}}</div>{{end}}
    <div style="color:#666;font-style:italic;">{{.Location}} · {{.Source}}</div>
    {{if .URL}}<a href="{{.URL}}">Vezi oferta</a>{{end}}
  </div>
  {{end}}
</body>
</html>`))

var priceDropsTmpl = template.Must(template.New("priceDrops").Parse(`
<html>
<body style="font-family: Arial, sans-serif;">
  <h1 style="color:#d73502;">Scăderi de preț</h1>
  {{range .Drops}}
  <div style="border:1px solid #ddd;margin:10px 0;padding:12px;border-radius:8px;">
    <div style="font-size:18px;font-weight:bold;">{{.Title}}</div>
    <div>
      <span style="text-decoration:line-through;">{{printf "%.0f" .PreviousPrice}} {{.Currency}}</span>
      <span style="color:#d73502;font-size:20px;font-weight:bold;">{{printf "%.0f" .CurrentPrice}} {{.Currency}}</span>
      <span style="color:#228b22;">(-{{printf "%.1f" .DropPercent}}%)</span>
    </div>
    <div style="color:#666;font-style:italic;">{{.Location}} · {{.Source}}</div>
  </div>
  {{end}}
</body>
</html>`))

var testTmpl = template.Must(template.New("test").Parse(`
<html>
<body>
  <h2>Email de test</h2>
  <p>Dacă primești acest email, configurația este corectă.</p>
  <p><em>Trimis la: {{.SentAt}}</em></p>
</body>
</html>`))

func renderNewStays(stays []*models.Stay, criteria models.SearchCriteria) (string, error) {
	var b strings.Builder
	err := newStaysTmpl.Execute(&b, struct {
		Stays    []*models.Stay
		Criteria models.SearchCriteria
	}{stays, criteria})
	if err != nil {
		return "", errors.Wrap(err, "render new stays email")
	}
	return b.String(), nil
}

func renderPriceDrops(drops []*models.PriceDropReport) (string, error) {
	var b strings.Builder
	err := priceDropsTmpl.Execute(&b, struct {
		Drops []*models.PriceDropReport
	}{drops})
	if err != nil {
		return "", errors.Wrap(err, "render price drops email")
	}
	return b.String(), nil
}

func renderTest(now time.Time) (string, error) {
	var b strings.Builder
	err := testTmpl.Execute(&b, struct{ SentAt string }{now.Format("2006-01-02 15:04:05")})
	if err != nil {
		return "", errors.Wrap(err, "render test email")
	}
	return b.String(), nil
}
