package gameview

import (
	"encoding/json"
	"strings"

	"cardroom/internal/types"
)

type TicTacToeModule struct{}

func (TicTacToeModule) Name() string { return "TicTacToe" }

type tictactoePayload struct {
	Board []string `json:"board"`
}

func (TicTacToeModule) Render(state *types.TurnState, caps Capabilities) Frame {
	f := Frame{Title: "TicTacToe"}
	if state == nil {
		f.Lines = append(f.Lines, "Waiting for game state.")
		return f
	}

	switch {
	case state.Status == types.GameStatusFinished:
		f.Lines = append(f.Lines, "The game is over.")
	case caps.IsActivePlayer:
		f.Lines = append(f.Lines, "Your move.")
	case caps.IsParticipant:
		f.Lines = append(f.Lines, "Opponent's move.")
	default:
		f.Lines = append(f.Lines, "You are watching this game.")
	}

	var p tictactoePayload
	if err := json.Unmarshal(state.Data, &p); err == nil && len(p.Board) == 9 {
		for row := 0; row < 3; row++ {
			cells := make([]string, 3)
			for col := 0; col < 3; col++ {
				c := p.Board[row*3+col]
				if c == "" {
					c = "."
				}
				cells[col] = c
			}
			f.Lines = append(f.Lines, strings.Join(cells, " "))
		}
	}

	f.CanAct = canAct(state, caps)
	return f
}
