// Copyright 2026 The Hyperion Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// authMiddleware checks the presented API key against the configured set.
// An empty key list leaves the API open, which is the local-first default.
func (s *Server) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if len(s.cfg.APIKeys) == 0 {
			c.Next()
			return
		}

		presented := presentedKey(c)
		for _, key := range s.cfg.APIKeys {
			if presented == key {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing API key"})
	}
}

// managementMiddleware requires the bcrypt-verified management key.
func (s *Server) managementMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.cfg.VerifyManagementKey(presentedKey(c)) {
			c.Next()
			return
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing management key"})
	}
}

// presentedKey extracts the key from the Authorization bearer header or
// the X-Api-Key header.
func presentedKey(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.GetHeader("X-Api-Key")
}
