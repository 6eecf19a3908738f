package jwt

import jwtv5 "github.com/golang-jwt/jwt/v5"

func registered(sub string) jwtv5.RegisteredClaims {
	return jwtv5.RegisteredClaims{Subject: sub}
}
