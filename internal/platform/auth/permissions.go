package auth

import (
	"sort"
	"strings"
)

// Permission codes. The set is closed; roles may only hold these.
const (
	PatientsView   = "patients.view"
	PatientsCreate = "patients.create"
	PatientsEdit   = "patients.edit"
	PatientsDelete = "patients.delete"

	PatientsQuestionnaireView = "patients.questionnaire.view"
	PatientsQuestionnaireEdit = "patients.questionnaire.edit"

	ZonesView   = "zones.view"
	ZonesManage = "zones.manage"

	SessionsView   = "sessions.view"
	SessionsCreate = "sessions.create"

	UsersView   = "users.view"
	UsersManage = "users.manage"
	RolesView   = "roles.view"
	RolesManage = "roles.manage"

	ConfigQuestionnaire = "config.questionnaire"
	ConfigZones         = "config.zones"
	ConfigBoxes         = "config.boxes"
	ConfigManage        = "config.manage"

	DashboardView = "dashboard.view"
	DashboardFull = "dashboard.full"

	ScheduleView   = "schedule.view"
	ScheduleManage = "schedule.manage"
	QueueView      = "queue.view"
	QueueManage    = "queue.manage"

	PaymentsView   = "payments.view"
	PaymentsCreate = "payments.create"
	PaymentsEdit   = "payments.edit"

	DocumentsView   = "documents.view"
	DocumentsManage = "documents.manage"

	PreConsultationsView     = "pre_consultations.view"
	PreConsultationsCreate   = "pre_consultations.create"
	PreConsultationsEdit     = "pre_consultations.edit"
	PreConsultationsDelete   = "pre_consultations.delete"
	PreConsultationsValidate = "pre_consultations.validate"

	BoxesView = "boxes.view"
)

var allPermissions = []string{
	PatientsView, PatientsCreate, PatientsEdit, PatientsDelete,
	PatientsQuestionnaireView, PatientsQuestionnaireEdit,
	ZonesView, ZonesManage,
	SessionsView, SessionsCreate,
	UsersView, UsersManage,
	RolesView, RolesManage,
	ConfigQuestionnaire, ConfigZones, ConfigBoxes, ConfigManage,
	DashboardView, DashboardFull,
	ScheduleView, ScheduleManage,
	QueueView, QueueManage,
	PaymentsView, PaymentsCreate, PaymentsEdit,
	DocumentsView, DocumentsManage,
	PreConsultationsView, PreConsultationsCreate, PreConsultationsEdit,
	PreConsultationsDelete, PreConsultationsValidate,
	BoxesView,
}

var permissionSet = func() map[string]bool {
	m := make(map[string]bool, len(allPermissions))
	for _, p := range allPermissions {
		m[p] = true
	}
	return m
}()

// AllPermissions returns a copy of the vocabulary.
func AllPermissions() []string {
	out := make([]string, len(allPermissions))
	copy(out, allPermissions)
	return out
}

func IsPermission(code string) bool {
	return permissionSet[code]
}

// UnknownPermissions returns the codes in perms that are not in the vocabulary.
func UnknownPermissions(perms []string) []string {
	var bad []string
	for _, p := range perms {
		if !permissionSet[p] {
			bad = append(bad, p)
		}
	}
	return bad
}

// GroupedPermissions groups the vocabulary by its leading segment
// ("pre_consultations.validate" -> "pre_consultations").
func GroupedPermissions() map[string][]string {
	out := make(map[string][]string)
	for _, p := range allPermissions {
		group, _, _ := strings.Cut(p, ".")
		out[group] = append(out[group], p)
	}
	for _, list := range out {
		sort.Strings(list)
	}
	return out
}

// Seeded permission sets for the system roles.
var (
	DoctorPermissions = []string{
		PatientsView, PatientsEdit, PatientsQuestionnaireView, PatientsQuestionnaireEdit,
		ZonesView, ZonesManage, SessionsView, SessionsCreate,
		ScheduleView, QueueView, QueueManage, BoxesView,
		DocumentsView, DocumentsManage, DashboardView,
		PreConsultationsView, PreConsultationsCreate, PreConsultationsEdit,
		PreConsultationsDelete, PreConsultationsValidate,
	}
	SecretaryPermissions = []string{
		PatientsView, PatientsCreate, PatientsEdit, ZonesView, SessionsView,
		ScheduleView, ScheduleManage, QueueView, QueueManage, BoxesView,
		PaymentsView, PaymentsCreate, DocumentsView,
		PreConsultationsView, PreConsultationsCreate, PreConsultationsEdit,
	}
)
