package middleware

import (
	"slices"

	"inkwell/internal/models"
)

// Operation names an action guarded by the policy table.
type Operation string

const (
	OpPostList        Operation = "post.list"
	OpPostGet         Operation = "post.get"
	OpPostSearch      Operation = "post.search"
	OpPostRelated     Operation = "post.related"
	OpPostCreate      Operation = "post.create"
	OpPostMine        Operation = "post.mine"
	OpPostUpdate      Operation = "post.update"
	OpPostDelete      Operation = "post.delete"
	OpPostStats       Operation = "post.stats"
	OpCommentGet      Operation = "comment.get"
	OpCommentAuthor   Operation = "comment.byAuthor"
	OpCommentCreate   Operation = "comment.create"
	OpCommentUpdate   Operation = "comment.update"
	OpCommentDelete   Operation = "comment.delete"
	OpCommentModerate Operation = "comment.moderate"
	OpSessionGet      Operation = "session.get"
	OpSessionEnd      Operation = "session.end"
)

var anyMember = []models.Role{models.RoleUser, models.RoleAdmin}

// Policy maps each protected operation to the roles allowed to perform it.
var Policy = map[Operation][]models.Role{
	OpPostCreate:      anyMember,
	OpPostMine:        anyMember,
	OpPostUpdate:      anyMember,
	OpPostDelete:      anyMember,
	OpPostStats:       {models.RoleAdmin},
	OpCommentCreate:   anyMember,
	OpCommentUpdate:   anyMember,
	OpCommentDelete:   anyMember,
	OpCommentModerate: {models.RoleAdmin},
	OpSessionGet:      anyMember,
	OpSessionEnd:      anyMember,
}

var publicOperations = map[Operation]struct{}{
	OpPostList:      {},
	OpPostGet:       {},
	OpPostSearch:    {},
	OpPostRelated:   {},
	OpCommentGet:    {},
	OpCommentAuthor: {},
}

// IsPublic reports whether op needs no identity.
func IsPublic(op Operation) bool {
	_, ok := publicOperations[op]
	return ok
}

// Authorize evaluates the policy table. Unknown operations are denied.
func Authorize(id *Identity, op Operation) error {
	if IsPublic(op) {
		return nil
	}
	if id == nil || id.UserID == "" {
		return models.NewUnauthorizedError("Authentication required")
	}
	roles, ok := Policy[op]
	if !ok || !slices.Contains(roles, id.Role) {
		return models.NewForbiddenError("You do not have permission to perform this action")
	}
	return nil
}
