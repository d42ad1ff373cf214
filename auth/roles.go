package auth

import (
	"sort"

	"github.com/adamspd/DesignQuizBot/models"
)

// RoleResolver maps chat user ids to roles from the configured admin list.
type RoleResolver struct {
	admins map[int64]struct{}
}

func NewRoleResolver(adminIDs []int64) *RoleResolver {
	admins := make(map[int64]struct{}, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = struct{}{}
	}
	return &RoleResolver{admins: admins}
}

func (r *RoleResolver) Resolve(userID int64) models.Role {
	if _, ok := r.admins[userID]; ok {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func (r *RoleResolver) IsAdmin(userID int64) bool {
	return r.Resolve(userID) == models.RoleAdmin
}

// Admins returns the admin ids in ascending order.
func (r *RoleResolver) Admins() []int64 {
	ids := make([]int64, 0, len(r.admins))
	for id := range r.admins {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
