package models

import "github.com/golang-jwt/jwt/v5"

// Profile is the read model over the 'users' table. Account provisioning
// lives in the platform's auth service; this service only reads the fields
// the escalation pipeline needs. Either field may be empty for a given user.
type Profile struct {
	ID       string `db:"id" json:"id"`
	Email    string `db:"email" json:"email,omitempty"`
	FullName string `db:"full_name" json:"full_name,omitempty"`
}

// Room identifies the conversation a message belongs to, as supplied by the
// chat collaborator on each safety check.
type Room struct {
	ID        string `json:"id" binding:"required"`
	Name      string `json:"name"`
	TeacherID string `json:"teacher_id"`
	ChatbotID string `json:"chatbot_id"`
}

// Claims defines the structure of the JWT claims for the review API.
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
