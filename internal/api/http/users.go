package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// CreateUserHandler registers an account. Admin only; there is no open
// self-signup.
// POST /users  { "username": "...", "password": "...", "role": "...", "full_name": "..." }
func CreateUserHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
			Role     string `json:"role"`
			FullName string `json:"full_name"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Username == "" || req.Password == "" {
			http.Error(w, "username and password required", http.StatusBadRequest)
			return
		}
		switch req.Role {
		case "":
			req.Role = "student"
		case "student", "staff", "admin":
		default:
			http.Error(w, "unknown role", http.StatusBadRequest)
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			http.Error(w, "hash password", http.StatusInternalServerError)
			return
		}
		id := uuid.NewString()
		_, err = db.ExecContext(r.Context(), `INSERT INTO users
			(id, username, password_hash, role, full_name, created_at)
			VALUES ($1,$2,$3,$4,$5,$6)`,
			id, req.Username, string(hash), req.Role, req.FullName, time.Now().Unix())
		if err != nil {
			http.Error(w, "username taken", http.StatusConflict)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": id, "username": req.Username, "role": req.Role})
	}
}

// ListUsersHandler lists accounts without secrets. Staff only.
func ListUsersHandler(db *sql.DB) http.HandlerFunc {
	type user struct {
		ID       string `json:"id"`
		Username string `json:"username"`
		Role     string `json:"role"`
		FullName string `json:"full_name,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := db.QueryContext(r.Context(),
			`SELECT id, username, role, full_name FROM users ORDER BY username`)
		if err != nil {
			writeErr(w, err)
			return
		}
		defer rows.Close()

		out := []user{}
		for rows.Next() {
			var u user
			if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.FullName); err != nil {
				writeErr(w, err)
				return
			}
			out = append(out, u)
		}
		if err := rows.Err(); err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}
