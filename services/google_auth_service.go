package services

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	googleoauth2 "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"focusQuestAPI/internal/user"
)

// GoogleAuthService runs the server side of the Google OAuth code flow.
type GoogleAuthService struct {
	oauth *oauth2.Config
	users *UserService
}

func NewGoogleAuthService(clientID, clientSecret, redirectURL string, users *UserService) *GoogleAuthService {
	return &GoogleAuthService{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "profile", "email"},
			Endpoint:     google.Endpoint,
		},
		users: users,
	}
}

// AuthCodeURL is where the browser is sent to consent.
func (s *GoogleAuthService) AuthCodeURL(state string) string {
	return s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.SetAuthURLParam("prompt", "select_account"))
}

// Authenticate exchanges the callback code, reads the Google profile and
// returns the matching local user.
func (s *GoogleAuthService) Authenticate(ctx context.Context, code string) (*user.User, error) {
	token, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	svc, err := googleoauth2.NewService(ctx, option.WithTokenSource(s.oauth.TokenSource(ctx, token)))
	if err != nil {
		return nil, fmt.Errorf("failed to create google client: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch google profile: %w", err)
	}
	if info.VerifiedEmail != nil && !*info.VerifiedEmail {
		return nil, fmt.Errorf("google account email is not verified")
	}

	return s.users.UpsertGoogleUser(ctx, user.GoogleProfile{
		GoogleID:  info.Id,
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
	})
}
