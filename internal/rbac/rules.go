package rbac

// Permissions checked by the scoring API.
const (
	PermAttemptCreate  = "attempt:create"
	PermAttemptAnswer  = "attempt:answer"
	PermAttemptSubmit  = "attempt:submit"
	PermAttemptViewOwn = "attempt:view-own"
	PermAttemptViewAll = "attempt:view-all"
	PermAnswerRegrade  = "answer:regrade"
	PermAnswerCheck    = "answer:check"
	PermTemplateWrite  = "template:write"
	PermCurveWrite     = "curve:write"
	PermExamWrite      = "exam:write"
	PermEventsView     = "events:view"
)

// Default policy. Regrades stay with admins.
var RolePermissions = map[string][]string{
	"student": {
		PermAttemptCreate,
		PermAttemptAnswer,
		PermAttemptSubmit,
		PermAttemptViewOwn,
		PermAnswerCheck,
	},
	"teacher": {
		PermAttemptViewAll,
		PermAnswerCheck,
		PermExamWrite,
		PermTemplateWrite,
		PermCurveWrite,
	},
	"admin": {
		"*", // everything
	},
}
