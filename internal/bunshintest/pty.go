package bunshintest

import (
	"os/exec"

	"github.com/creack/pty"
	"github.com/gorilla/websocket"
)

// bridgePTY runs /bin/sh under a 80x24 pty and copies bytes both ways
// until either side ends.
func (s *Server) bridgePTY(conn *websocket.Conn) {
	cmd := exec.Command("/bin/sh")
	cmd.Env = []string{"TERM=xterm-256color", "PS1=$ ", "HOME=/tmp"}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: 24, Cols: 80})
	if err != nil {
		_ = conn.WriteMessage(websocket.TextMessage, []byte("pty start failed: "+err.Error()))
		return
	}
	defer func() { _ = cmd.Wait() }()
	defer func() { _ = ptmx.Close() }()

	go func() {
		for {
			_, msg, err := conn.ReadMessage()
			if err != nil {
				_ = ptmx.Close()
				return
			}
			s.mu.Lock()
			s.shellInput = append(s.shellInput, msg)
			s.mu.Unlock()
			_, _ = ptmx.Write(msg)
		}
	}()

	buf := make([]byte, 4096)
	for {
		n, err := ptmx.Read(buf)
		if err != nil {
			return
		}
		if err := conn.WriteMessage(websocket.TextMessage, buf[:n]); err != nil {
			return
		}
	}
}
