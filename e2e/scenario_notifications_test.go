package e2e

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/suite"

	"tribehub/domain"
)

type testNotificationScenarioSuite struct {
	BaseRealtimeSuite
}

func TestNotificationScenarioSuite(t *testing.T) {
	suite.Run(t, &testNotificationScenarioSuite{})
}

type drainResponse struct {
	Notifications []domain.Notification `json:"notifications"`
}

func (s *testNotificationScenarioSuite) TestOfflineBacklogIsDrainedExactlyOnce() {
	s.Banner("Step 1: A notification is delivered while Erin is offline")
	status, _ := s.Post("/api/notifications", "", map[string]any{
		"recipient": "erin",
		"type":      "friend_request",
		"title":     "Bob",
		"message":   "wants to be your friend",
	})
	s.Require().Equal(http.StatusAccepted, status)

	s.Banner("Step 2: Erin reconnects and drains her backlog")
	status, body := s.Post("/api/notifications/drain", s.Token("erin"), nil)
	s.Require().Equal(http.StatusOK, status)

	var drained drainResponse
	s.Require().NoError(json.Unmarshal(body, &drained))
	s.Require().Len(drained.Notifications, 1)
	s.Require().Equal("friend_request", drained.Notifications[0].Type)
	s.Require().Equal("erin", drained.Notifications[0].Recipient)

	s.Banner("Step 3: A second drain comes back empty")
	status, body = s.Post("/api/notifications/drain", s.Token("erin"), nil)
	s.Require().Equal(http.StatusOK, status)
	s.Require().NoError(json.Unmarshal(body, &drained))
	s.Require().Empty(drained.Notifications)
}

func (s *testNotificationScenarioSuite) TestOnlineRecipientGetsTheLivePush() {
	s.Banner("Frank is connected when the notification arrives")
	frank := s.Dial(s.Token("frank"))
	defer frank.Close()
	frank.Expect("welcome")

	status, _ := s.Post("/api/notifications", "", map[string]any{
		"recipient": "frank",
		"type":      "event_invite",
		"title":     "Summer meetup",
	})
	s.Require().Equal(http.StatusAccepted, status)

	var pushed struct {
		Notification domain.Notification `json:"notification"`
	}
	s.Require().NoError(json.Unmarshal(frank.Expect("notification"), &pushed))
	s.Require().Equal("event_invite", pushed.Notification.Type)

	// The live push never empties the backlog; a later device still drains it
	status, body := s.Post("/api/notifications/drain", s.Token("frank"), nil)
	s.Require().Equal(http.StatusOK, status)
	var drained drainResponse
	s.Require().NoError(json.Unmarshal(body, &drained))
	s.Require().Len(drained.Notifications, 1)
}

func (s *testNotificationScenarioSuite) TestDrainRequiresAuthentication() {
	status, _ := s.Post("/api/notifications/drain", "", nil)
	s.Require().Equal(http.StatusUnauthorized, status)
}

func (s *testNotificationScenarioSuite) TestDeliverRejectsAMissingRecipient() {
	status, _ := s.Post("/api/notifications", "", map[string]any{"title": "nobody home"})
	s.Require().Equal(http.StatusBadRequest, status)
}
