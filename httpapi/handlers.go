package httpapi

import (
	"net/http"
	"time"

	forwardercommand "github.com/goliatone/go-forwarder/command"
	"github.com/goliatone/go-forwarder/core"
	forwarderquery "github.com/goliatone/go-forwarder/query"
)

func (r *Router) handleIngestFragment(w http.ResponseWriter, req *http.Request) {
	var payload fragmentRequest
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	msg := forwardercommand.IngestFragmentMessage{
		Sender:  payload.Sender,
		Content: payload.Content,
	}
	if payload.CapturedAt != nil {
		msg.CapturedAt = payload.CapturedAt.UTC()
	}
	result, err := executeResult[core.IngestResult](req.Context(), r.commands.IngestFragment, msg)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusAccepted, fragmentResponse{Result: result})
}

func (r *Router) handleListRules(w http.ResponseWriter, req *http.Request) {
	rules, err := query[[]core.Rule](req.Context(), r.queries.ListRules, forwarderquery.ListRulesMessage{})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, ruleFromDomain(rule))
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleCreateRule(w http.ResponseWriter, req *http.Request) {
	var payload ruleRequest
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	rule, err := executeResult[core.Rule](req.Context(), r.commands.CreateRule, forwardercommand.CreateRuleMessage{
		Input: core.CreateRuleInput{
			Name:    payload.Name,
			Channel: payload.Channel.toDomain(true),
		},
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusCreated, ruleFromDomain(rule))
}

func (r *Router) handleGetRule(w http.ResponseWriter, req *http.Request) {
	rule, err := query[core.Rule](req.Context(), r.queries.GetRule, forwarderquery.GetRuleMessage{RuleID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, ruleFromDomain(rule))
}

// handleUpdateRule replaces name and channel. An omitted enabled flag keeps the
// stored value.
func (r *Router) handleUpdateRule(w http.ResponseWriter, req *http.Request) {
	var payload ruleRequest
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	ruleID := pathID(req)
	current, err := query[core.Rule](req.Context(), r.queries.GetRule, forwarderquery.GetRuleMessage{RuleID: ruleID})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	rule, err := executeResult[core.Rule](req.Context(), r.commands.UpdateRule, forwardercommand.UpdateRuleMessage{
		Input: core.UpdateRuleInput{
			ID:      ruleID,
			Name:    payload.Name,
			Channel: payload.Channel.toDomain(current.Channel.Enabled),
		},
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, ruleFromDomain(rule))
}

func (r *Router) handleDeleteRule(w http.ResponseWriter, req *http.Request) {
	if err := execute(req.Context(), r.commands.DeleteRule, forwardercommand.DeleteRuleMessage{RuleID: pathID(req)}); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleSetRuleEnabled(w http.ResponseWriter, req *http.Request) {
	var payload enabledRequest
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	if payload.Enabled == nil {
		r.writeError(w, req, badRequest("enabled", "enabled is required"))
		return
	}
	rule, err := executeResult[core.Rule](req.Context(), r.commands.SetRuleEnabled, forwardercommand.SetRuleEnabledMessage{
		RuleID:  pathID(req),
		Enabled: *payload.Enabled,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, ruleFromDomain(rule))
}

func (r *Router) handleTestDelivery(w http.ResponseWriter, req *http.Request) {
	var payload testDeliveryRequest
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	if err := execute(req.Context(), r.commands.TestDelivery, forwardercommand.TestDeliveryMessage{
		Channel: payload.Channel.toDomain(true),
		Title:   payload.Title,
		Body:    payload.Body,
	}); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListMessages(w http.ResponseWriter, req *http.Request) {
	limit, err := queryLimit(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	messages, err := query[[]core.Message](req.Context(), r.queries.ListMessages, forwarderquery.ListMessagesMessage{Limit: limit})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]messageResponse, 0, len(messages))
	for _, message := range messages {
		out = append(out, messageFromDomain(message))
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleClearMessages(w http.ResponseWriter, req *http.Request) {
	if err := execute(req.Context(), r.commands.ClearMessages, forwardercommand.ClearMessagesMessage{}); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleGetMessage(w http.ResponseWriter, req *http.Request) {
	message, err := query[core.Message](req.Context(), r.queries.GetMessage, forwarderquery.GetMessageMessage{MessageID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, messageFromDomain(message))
}

func (r *Router) handleListJobsForMessage(w http.ResponseWriter, req *http.Request) {
	views, err := query[[]core.JobView](req.Context(), r.queries.ListJobsForMessage, forwarderquery.ListJobsForMessageMessage{MessageID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]jobResponse, 0, len(views))
	for _, view := range views {
		out = append(out, jobViewFromDomain(view))
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleListJobsByStatus(w http.ResponseWriter, req *http.Request) {
	status, err := core.ParseJobStatus(req.URL.Query().Get("status"))
	if err != nil {
		r.writeError(w, req, badRequest("status", err.Error()))
		return
	}
	limit, err := queryLimit(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	jobs, err := query[[]core.Job](req.Context(), r.queries.ListJobsByStatus, forwarderquery.ListJobsByStatusMessage{
		Status: status,
		Limit:  limit,
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]jobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, jobFromDomain(job))
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) {
	job, err := query[core.Job](req.Context(), r.queries.GetJob, forwarderquery.GetJobMessage{JobID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, jobFromDomain(job))
}

func (r *Router) handleRetryJob(w http.ResponseWriter, req *http.Request) {
	job, err := executeResult[core.Job](req.Context(), r.commands.RetryJob, forwardercommand.RetryJobMessage{JobID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusAccepted, jobFromDomain(job))
}

func (r *Router) handleCancelJob(w http.ResponseWriter, req *http.Request) {
	job, err := executeResult[core.Job](req.Context(), r.commands.CancelJob, forwardercommand.CancelJobMessage{JobID: pathID(req)})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, jobFromDomain(job))
}

func (r *Router) handleCancelAllRetrying(w http.ResponseWriter, req *http.Request) {
	count, err := executeResult[int](req.Context(), r.commands.CancelAllRetrying, forwardercommand.CancelAllRetryingMessage{})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	settings, err := query[core.Settings](req.Context(), r.queries.GetSettings, forwarderquery.GetSettingsMessage{})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, settingsFromDomain(settings))
}

func (r *Router) handleUpdateSettings(w http.ResponseWriter, req *http.Request) {
	var payload settingsDTO
	if err := r.decodeJSON(w, req, &payload); err != nil {
		r.writeError(w, req, err)
		return
	}
	current, err := query[core.Settings](req.Context(), r.queries.GetSettings, forwarderquery.GetSettingsMessage{})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	saved, err := executeResult[core.Settings](req.Context(), r.commands.UpdateSettings, forwardercommand.UpdateSettingsMessage{
		Settings: payload.apply(current),
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, settingsFromDomain(saved))
}

func (r *Router) handleExportBackup(w http.ResponseWriter, req *http.Request) {
	doc, err := query[core.BackupDocument](req.Context(), r.queries.ExportBackup, forwarderquery.ExportBackupMessage{})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	filename := "forwarder-backup-" + time.UnixMilli(doc.ExportTimestamp).UTC().Format("20060102-150405") + ".json"
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	r.writeJSON(w, http.StatusOK, doc)
}

func (r *Router) handleImportBackup(w http.ResponseWriter, req *http.Request) {
	var doc core.BackupDocument
	if err := r.decodeJSON(w, req, &doc); err != nil {
		r.writeError(w, req, err)
		return
	}
	result, err := executeResult[core.ImportResult](req.Context(), r.commands.ImportBackup, forwardercommand.ImportBackupMessage{
		Document: doc,
		Strategy: core.ImportStrategy(req.URL.Query().Get("strategy")),
	})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	r.writeJSON(w, http.StatusOK, importResponse{
		Strategy:         result.Strategy,
		RulesImported:    result.RulesImported,
		MessagesImported: result.MessagesImported,
	})
}

func (r *Router) handleListLogs(w http.ResponseWriter, req *http.Request) {
	limit, err := queryLimit(req)
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	entries, err := query[[]core.LogEntry](req.Context(), r.queries.ListLogs, forwarderquery.ListLogsMessage{Limit: limit})
	if err != nil {
		r.writeError(w, req, err)
		return
	}
	out := make([]logResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, logResponse{ID: entry.ID, Message: entry.Message, CreatedAt: entry.CreatedAt})
	}
	r.writeJSON(w, http.StatusOK, out)
}

func (r *Router) handleClearLogs(w http.ResponseWriter, req *http.Request) {
	if err := execute(req.Context(), r.commands.ClearLogs, forwardercommand.ClearLogsMessage{}); err != nil {
		r.writeError(w, req, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
