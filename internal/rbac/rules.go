package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"candidate": {
		"assessment:take", // start/next/respond; the route guard does not check ownership
		"assessment:view-own",
	},
	"recruiter": {
		"candidate:create",
		"candidate:view",
		"assessment:create",
		"assessment:take",
		"assessment:view-all",
		"assessment:complete",
		"match:compute",
		"interview:generate",
		"model:view",
	},
	"admin": {
		"*", // everything
	},
}
