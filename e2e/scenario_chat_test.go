package e2e

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type testChatScenarioSuite struct {
	BaseRealtimeSuite
}

func TestChatScenarioSuite(t *testing.T) {
	suite.Run(t, &testChatScenarioSuite{})
}

func (s *testChatScenarioSuite) TestRoomChatFlow() {
	s.Banner("Step 1: Alice and Bob connect and join the event room")
	alice := s.Dial(s.Token("alice"))
	defer alice.Close()
	alice.Expect("welcome")

	bob := s.Dial(s.Token("bob"))
	defer bob.Close()
	bob.Expect("welcome")
	alice.Expect("user_online")

	alice.Send("join_event", map[string]string{"eventId": "7"})
	alice.Expect("joined_event")

	bob.Send("join_event", map[string]string{"eventId": "7"})
	bob.Expect("joined_event")

	var joined struct {
		EventID string `json:"eventId"`
		UserID  string `json:"userId"`
	}
	s.Require().NoError(json.Unmarshal(alice.Expect("user_joined_event"), &joined))
	s.Require().Equal("7", joined.EventID)
	s.Require().Equal("bob", joined.UserID)

	s.Banner("Step 2: Typing indicators reach the other member")
	alice.Send("typing_start", map[string]string{"roomId": "event:7"})
	var typing struct {
		UserID string `json:"userId"`
	}
	s.Require().NoError(json.Unmarshal(bob.Expect("user_typing"), &typing))
	s.Require().Equal("alice", typing.UserID)

	alice.Send("typing_stop", map[string]string{"roomId": "event:7"})
	bob.Expect("user_stopped_typing")

	s.Banner("Step 3: Bob sends a message, Alice gets the broadcast, Bob gets the ack")
	bob.Send("send_message", map[string]string{"roomId": "event:7", "message": "hi"})

	var message struct {
		RoomID  string `json:"roomId"`
		Message string `json:"message"`
		Sender  string `json:"sender"`
	}
	s.Require().NoError(json.Unmarshal(alice.Expect("new_message"), &message))
	s.Require().Equal("event:7", message.RoomID)
	s.Require().Equal("hi", message.Message)
	s.Require().Equal("bob", message.Sender)

	var ack struct {
		Message string `json:"message"`
		Status  string `json:"status"`
	}
	s.Require().NoError(json.Unmarshal(bob.Expect("message_sent"), &ack))
	s.Require().Equal("hi", ack.Message)
	s.Require().Equal("sent", ack.Status)

	// The sender never receives their own broadcast
	bob.ExpectNone("new_message", 300*time.Millisecond)
}

func (s *testChatScenarioSuite) TestPresenceOnDisconnect() {
	s.Banner("Carol sees Dave come and go")
	carol := s.Dial(s.Token("carol"))
	defer carol.Close()
	carol.Expect("welcome")

	dave := s.Dial(s.Token("dave"))
	dave.Expect("welcome")

	var online struct {
		UserID string `json:"userId"`
	}
	s.Require().NoError(json.Unmarshal(carol.Expect("user_online"), &online))
	s.Require().Equal("dave", online.UserID)

	dave.Close()

	var offline struct {
		UserID string `json:"userId"`
	}
	s.Require().NoError(json.Unmarshal(carol.Expect("user_offline"), &offline))
	s.Require().Equal("dave", offline.UserID)
}

func (s *testChatScenarioSuite) TestAnonymousConnection() {
	s.Banner("Anonymous sessions observe but cannot act")
	anon := s.Dial("")
	defer anon.Close()
	anon.Expect("welcome_anonymous")

	anon.Send("join_event", map[string]string{"eventId": "7"})
	var reply struct {
		Message string `json:"message"`
	}
	s.Require().NoError(json.Unmarshal(anon.Expect("error"), &reply))
	s.Require().Contains(reply.Message, "must authenticate")

	// Typing from an anonymous session is dropped without a reply
	anon.Send("typing_start", map[string]string{"roomId": "event:7"})
	anon.ExpectNone("error", 300*time.Millisecond)
}
