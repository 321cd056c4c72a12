// internal/core/auth/service.go
package auth

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/iterator"
)

type Service interface {
	Login(ctx context.Context, username, password string) (string, error)
}

type service struct {
	db        *firestore.Client
	jwtSecret []byte
}

func NewService(db *firestore.Client, jwtSecret []byte) Service {
	return &service{db: db, jwtSecret: jwtSecret}
}

// Usuario representa a estrutura de um usuário no Firestore.
type Usuario struct {
	Username     string   `firestore:"username"`
	Nome         string   `firestore:"nome"`
	PasswordHash string   `firestore:"passwordHash"`
	Roles        []string `firestore:"roles"` // Array de permissões
}

func (s *service) Login(ctx context.Context, username, password string) (string, error) {
	// 1. Encontrar o usuário no Firestore.
	query := s.db.Collection("usuarios").Where("username", "==", username).Limit(1).Documents(ctx)
	defer query.Stop()

	doc, err := query.Next()
	if err == iterator.Done {
		return "", errors.New("usuário ou senha inválidos")
	}
	if err != nil {
		return "", errors.New("erro ao consultar o banco de dados")
	}

	var usuario Usuario
	if err := doc.DataTo(&usuario); err != nil {
		return "", errors.New("erro ao ler dados do usuário")
	}

	// 2. Comparar a senha fornecida com o hash armazenado.
	if err := bcrypt.CompareHashAndPassword([]byte(usuario.PasswordHash), []byte(password)); err != nil {
		return "", errors.New("usuário ou senha inválidos")
	}

	// 3. Gerar o token JWT com as permissões (roles).
	claims := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"username": usuario.Username,
		"nome":     usuario.Nome,
		"roles":    usuario.Roles,
		"exp":      time.Now().Add(time.Hour * 24).Unix(), // Token expira em 24 horas
	})

	tokenString, err := claims.SignedString(s.jwtSecret)
	if err != nil {
		return "", errors.New("erro ao gerar token de acesso")
	}

	return tokenString, nil
}
