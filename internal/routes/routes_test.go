// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package routes

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifier_Default(t *testing.T) {
	c := Default()
	tests := []struct {
		path string
		want Class
	}{
		{"/dashboard", Class{}},
		{"/", Class{}},
		{"/login", Class{AuthPage: true}},
		{"/login?next=/dashboard", Class{AuthPage: true}},
		{"/signup", Class{AuthPage: true}},
		{"/forgot-password", Class{AuthPage: true}},
		{"/reset-password/abc123", Class{AuthPage: true}},
		{"/auth/callback", Class{AuthPage: true}},
		{"/auth", Class{AuthPage: true}},
		{"/authors", Class{}},
		{"/loginx", Class{}},
		{"/admin", Class{Admin: true}},
		{"/admin/users/42", Class{Admin: true}},
		{"/admin/login", Class{Admin: true, AdminLogin: true}},
		{"/admin/login#top", Class{Admin: true, AdminLogin: true}},
		{"/administrator", Class{}},
		{"admin//users/", Class{Admin: true}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, c.Classify(tt.path))
		})
	}
}

func TestClassifier_EmptyRulesMatchNothing(t *testing.T) {
	c := &Classifier{}
	assert.Equal(t, Class{}, c.Classify("/admin/login"))
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "/a/b", Normalize("a/b/"))
	assert.Equal(t, "/", Normalize(""))
	assert.Equal(t, "/x", Normalize("/x?y=1#z"))
}
