package web

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl"
	"gitlab.com/pgrepl/pgrepl/internal/pgrepl/replication"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type handler struct {
	manager Manager
	logger  logrus.FieldLogger
}

// page is the data every template gets.
type page struct {
	Title   string
	Message string
	IsError bool

	Tables    pgrepl.Tables
	TablesErr error
	Rows      pgrepl.Rows
	Status    replication.Status
}

func (h *handler) render(w http.ResponseWriter, name string, data page) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		h.logger.WithError(err).WithField("template", name).Error("rendering page failed")
		http.Error(w, "rendering page failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// redirect sends the browser back to the index page, which shows the message.
func (h *handler) redirect(w http.ResponseWriter, r *http.Request, message string, failed bool) {
	query := url.Values{"message": []string{message}}
	if failed {
		query.Set("error", "1")
	}
	http.Redirect(w, r, "/?"+query.Encode(), http.StatusSeeOther)
}

func (h *handler) redirectReport(w http.ResponseWriter, r *http.Request, report pgrepl.Report) {
	h.redirect(w, r, report.Message, report.Err != nil)
}

func (h *handler) index(w http.ResponseWriter, r *http.Request) {
	data := page{
		Title:   "PostgreSQL Replication Management",
		Message: r.URL.Query().Get("message"),
		IsError: r.URL.Query().Get("error") != "",
	}
	data.Tables, data.TablesErr = h.manager.ListTables(r.Context())

	h.render(w, "index.html", data)
}

func (h *handler) createTable(w http.ResponseWriter, r *http.Request) {
	h.redirectReport(w, r, h.manager.CreateTable(r.Context(), r.PostFormValue("table")))
}

func (h *handler) addRow(w http.ResponseWriter, r *http.Request) {
	h.redirectReport(w, r, h.manager.AddRow(r.Context(), r.PostFormValue("table"), r.PostFormValue("data")))
}

func (h *handler) deleteRow(w http.ResponseWriter, r *http.Request) {
	rawID := strings.TrimSpace(r.PostFormValue("id"))
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		h.redirect(w, r, "Invalid row ID "+strconv.Quote(rawID)+", expected a number.", true)
		return
	}

	h.redirectReport(w, r, h.manager.DeleteRow(r.Context(), r.PostFormValue("table"), id))
}

func (h *handler) dropTable(w http.ResponseWriter, r *http.Request) {
	h.redirectReport(w, r, h.manager.DropTable(r.Context(), r.PostFormValue("table")))
}

func (h *handler) setupReplication(w http.ResponseWriter, r *http.Request) {
	h.redirectReport(w, r, h.manager.SetupReplication(r.Context()))
}

func (h *handler) showRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	rows, err := h.manager.ShowRows(r.Context(), table)
	if err != nil {
		h.redirect(w, r, "Error showing rows: "+err.Error(), true)
		return
	}

	h.render(w, "rows.html", page{Title: "Table " + rows.Table.String(), Rows: rows})
}

func (h *handler) replicationStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.manager.ReplicationStatus(r.Context())
	if err != nil {
		h.render(w, "status.html", page{
			Title:   "Replication status",
			Message: "Error reading replication status: " + err.Error(),
			IsError: true,
		})
		return
	}

	h.render(w, "status.html", page{Title: "Replication status", Status: status})
}
