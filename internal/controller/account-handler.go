package controller

import (
	"net/http"

	"github.com/sharetube/watchparty/internal/service/account"
	"github.com/sharetube/watchparty/pkg/rest"
)

type registerInput struct {
	Username    string `json:"username" validate:"required,max=64"`
	Password    string `json:"password" validate:"required,max=128"`
	DisplayName string `json:"displayName" validate:"max=64"`
}

func (c controller) register(w http.ResponseWriter, r *http.Request) {
	var input registerInput
	if !c.readBody(w, r, &input) {
		return
	}

	registerResp, err := c.accountService.Register(r.Context(), &account.RegisterParams{
		Username:    input.Username,
		Password:    input.Password,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"token": registerResp.Token, "user": registerResp.User})
}

type loginInput struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,max=128"`
}

func (c controller) login(w http.ResponseWriter, r *http.Request) {
	var input loginInput
	if !c.readBody(w, r, &input) {
		return
	}

	loginResp, err := c.accountService.Login(r.Context(), &account.LoginParams{
		Username: input.Username,
		Password: input.Password,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"token": loginResp.Token, "user": loginResp.User})
}

func (c controller) logout(w http.ResponseWriter, r *http.Request) {
	token := c.authToken(r)
	if token == "" {
		c.writeError(w, r, ErrMissingToken)
		return
	}

	if err := c.accountService.Logout(r.Context(), token); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, nil)
}

func (c controller) getMe(w http.ResponseWriter, r *http.Request) {
	token := c.authToken(r)
	if token == "" {
		c.writeError(w, r, ErrMissingToken)
		return
	}

	user, err := c.accountService.GetUserByToken(r.Context(), token)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"user": user})
}

type updateProfileInput struct {
	DisplayName string `json:"displayName" validate:"required,max=64"`
}

func (c controller) updateProfile(w http.ResponseWriter, r *http.Request) {
	token := c.authToken(r)
	if token == "" {
		c.writeError(w, r, ErrMissingToken)
		return
	}

	var input updateProfileInput
	if !c.readBody(w, r, &input) {
		return
	}

	user, err := c.accountService.UpdateProfile(r.Context(), &account.UpdateProfileParams{
		Token:       token,
		DisplayName: input.DisplayName,
	})
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"user": user})
}

func (c controller) getDashboard(w http.ResponseWriter, r *http.Request) {
	token := c.authToken(r)
	if token == "" {
		c.writeError(w, r, ErrMissingToken)
		return
	}

	dashboard, err := c.accountService.GetDashboard(r.Context(), token)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, rest.Envelope{"dashboard": dashboard})
}

type touchRoomInput struct {
	RoomId string `json:"roomId" validate:"required,max=64"`
}

func (c controller) touchRoom(w http.ResponseWriter, r *http.Request) {
	user, ok := c.requireUser(w, r)
	if !ok {
		return
	}

	var input touchRoomInput
	if !c.readBody(w, r, &input) {
		return
	}

	if err := c.accountService.TouchRoom(r.Context(), &account.TouchRoomParams{
		UserId: user.Id,
		RoomId: input.RoomId,
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, nil)
}

type addWatchHistoryInput struct {
	RoomId    string `json:"roomId" validate:"required,max=64"`
	MediaType string `json:"mediaType" validate:"required,oneof=blob youtube external"`
	Title     string `json:"title" validate:"max=500"`
	MediaId   string `json:"mediaId" validate:"max=2048"`
}

func (c controller) addWatchHistory(w http.ResponseWriter, r *http.Request) {
	user, ok := c.requireUser(w, r)
	if !ok {
		return
	}

	var input addWatchHistoryInput
	if !c.readBody(w, r, &input) {
		return
	}

	if err := c.accountService.AddWatchHistory(r.Context(), &account.AddWatchHistoryParams{
		UserId:    user.Id,
		RoomId:    input.RoomId,
		MediaType: input.MediaType,
		Title:     input.Title,
		MediaId:   input.MediaId,
	}); err != nil {
		c.writeError(w, r, err)
		return
	}

	c.writeOK(w, nil)
}

func (c controller) requireUser(w http.ResponseWriter, r *http.Request) (account.User, bool) {
	token := c.authToken(r)
	if token == "" {
		c.writeError(w, r, ErrMissingToken)
		return account.User{}, false
	}

	user, err := c.accountService.GetUserByToken(r.Context(), token)
	if err != nil {
		c.writeError(w, r, err)
		return account.User{}, false
	}

	return user, true
}
