// game/errors.go
package game

import "errors"

// Request-level errors. The message text is what the client shows the player,
// so it stays in the game's language. Every one of these is recoverable: the
// failing intent is rejected, the room is untouched, nobody else hears about
// it.
var (
	ErrInvalidNickname    = errors.New("Ungültiger Nickname")
	ErrNicknameTaken      = errors.New("Nickname bereits vergeben")
	ErrRoomNotFound       = errors.New("Raum nicht gefunden")
	ErrRoomFull           = errors.New("Der Raum ist voll")
	ErrNotInRoom          = errors.New("Du bist in keinem Raum")
	ErrNotEngineer        = errors.New("Nur der Ingenieur kann Hebel umschalten")
	ErrNotOperator        = errors.New("Nur der Operator kann die finale Aktion ausführen")
	ErrRoomNotActive      = errors.New("Das Spiel hat noch nicht begonnen")
	ErrUnknownLever       = errors.New("Unbekannter Hebel")
	ErrNotEnoughPlayers   = errors.New("Das Spiel benötigt genau 4 Spieler")
	ErrGameAlreadyStarted = errors.New("Das Spiel läuft bereits")
	ErrInternal           = errors.New("Interner Serverfehler")
)
