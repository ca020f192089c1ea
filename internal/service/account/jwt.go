package account

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type claims struct {
	UserId    string
	SessionId string
}

func (s *Service) generateJWT(userId, sessionId string, expiresAt time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   userId,
		ID:        sessionId,
		IssuedAt:  jwt.NewNumericDate(s.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	})

	return token.SignedString(s.secret)
}

func (s *Service) parseJWT(tokenString string) (claims, error) {
	var registered jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &registered, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil {
		return claims{}, err
	}

	if !token.Valid || registered.Subject == "" || registered.ID == "" {
		return claims{}, errors.New("invalid token")
	}

	return claims{
		UserId:    registered.Subject,
		SessionId: registered.ID,
	}, nil
}
