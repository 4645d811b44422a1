package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"catalog:view",
		"attempt:start",
		"attempt:submit",
		"attempt:view-own",
		"file:submit",
		"file:view-own",
		"group:request",
	},
	"staff": {
		"catalog:view",
		"catalog:edit",
		"plan:schedule",
		"attempt:view-all",
		"file:review",
		"group:manage",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
