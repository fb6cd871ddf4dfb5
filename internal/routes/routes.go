// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package routes classifies navigation paths for the idle guard.
package routes

import (
	"path"
	"strings"
)

// Class describes what kind of page a path is.
type Class struct {
	// Admin is true for every path under the admin prefix, including its
	// login page.
	Admin bool
	// AdminLogin is true for the admin login page.
	AdminLogin bool
	// AuthPage is true for public authentication pages (login, signup, ...).
	AuthPage bool
}

// Classifier maps paths to classes using prefix rules. A rule ending in
// "/" matches everything below it; any other rule matches itself and its
// sub-paths.
type Classifier struct {
	AdminPrefix string
	AdminLogin  string
	AuthPages   []string
}

// Default returns the classifier for the stock route layout.
func Default() *Classifier {
	return &Classifier{
		AdminPrefix: "/admin",
		AdminLogin:  "/admin/login",
		AuthPages:   []string{"/login", "/signup", "/forgot-password", "/reset-password", "/auth/"},
	}
}

// Classify returns the class of p. Query strings and fragments are ignored.
func (c *Classifier) Classify(p string) Class {
	p = Normalize(p)
	return Class{
		Admin:      matches(p, c.AdminPrefix),
		AdminLogin: matches(p, c.AdminLogin),
		AuthPage:   c.isAuthPage(p),
	}
}

func (c *Classifier) isAuthPage(p string) bool {
	for _, rule := range c.AuthPages {
		if matches(p, rule) {
			return true
		}
	}
	return false
}

// Normalize strips the query and fragment and cleans the path.
func Normalize(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func matches(p, rule string) bool {
	if rule == "" {
		return false
	}
	if strings.HasSuffix(rule, "/") {
		return strings.HasPrefix(p+"/", rule)
	}
	rule = path.Clean(rule)
	return p == rule || strings.HasPrefix(p, rule+"/")
}
