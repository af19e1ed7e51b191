package rbac

// Permissions checked by the admin API.
const (
	PermQuestionView     = "question:view"
	PermPromptGenerate   = "prompt:generate"
	PermAnnotationImport = "annotation:import"
	PermReportView       = "report:view"
	PermReportWrite      = "report:write"
	PermReportClear      = "report:clear"
	PermExportRun        = "export:run"
)

var RolePermissions = map[string][]string{
	"viewer": {
		PermQuestionView,
		PermReportView,
		PermReportWrite,
	},
	"editor": {
		"question:*",
		"report:*",
		PermPromptGenerate,
		PermAnnotationImport,
	},
	"admin": {
		"*",
	},
}
