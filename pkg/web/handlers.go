package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/tempscope/tempscope/pkg/alert"
)

// handleStatus returns the monitor's current state.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.stateFn())
}

// handleEvents returns the recorded alert history, oldest first.
func (s *Server) handleEvents(c *fiber.Ctx) error {
	events := s.eventsFn()
	if events == nil {
		events = []alert.Event{}
	}
	return c.JSON(events)
}

// handleLogs returns the recent temperature log lines.
func (s *Server) handleLogs(c *fiber.Ctx) error {
	s.logsMu.RLock()
	lines := make([]string, len(s.logs))
	copy(lines, s.logs)
	s.logsMu.RUnlock()
	return c.JSON(lines)
}

// handleStatusWS streams state updates. The current state is sent
// immediately so the page renders before the first reading lands.
func (s *Server) handleStatusWS(conn *websocket.Conn) {
	conn.WriteJSON(s.stateFn())
	newClient(s.statusHub, conn).serve()
}

// handleFramesWS streams annotated preview frames as binary JPEGs.
func (s *Server) handleFramesWS(conn *websocket.Conn) {
	newClient(s.frameHub, conn).serve()
}

func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.SendString(indexHTML)
}

const indexHTML = `<!doctype html>
<html>
<head>
<meta charset="utf-8">
<title>tempscope</title>
<style>
  body { font-family: monospace; background: #111; color: #ddd; margin: 2em; }
  #temp { font-size: 4em; }
  #temp.alert { color: #f33; }
  #banner { color: #f33; font-size: 1.5em; visibility: hidden; }
  #frame { max-width: 640px; border: 1px solid #333; margin-top: 1em; }
  #meta { color: #888; }
</style>
</head>
<body>
<h1>tempscope</h1>
<div id="temp">--</div>
<div id="banner">ALERT</div>
<div id="meta"></div>
<img id="frame" alt="camera feed">
<script>
  const proto = location.protocol === "https:" ? "wss" : "ws";
  const status = new WebSocket(proto + "://" + location.host + "/ws/status");
  status.onmessage = (ev) => {
    const st = JSON.parse(ev.data);
    const temp = document.getElementById("temp");
    temp.textContent = st.read_count > 0 ? st.last_value + "°C" : "--";
    temp.className = st.alerting ? "alert" : "";
    document.getElementById("banner").style.visibility = st.alerting ? "visible" : "hidden";
    document.getElementById("meta").textContent =
      "threshold " + st.threshold + "°C (" + st.direction + ") | frames " + st.frame_count;
  };
  const frames = new WebSocket(proto + "://" + location.host + "/ws/frames");
  frames.binaryType = "blob";
  frames.onmessage = (ev) => {
    const img = document.getElementById("frame");
    const url = URL.createObjectURL(ev.data);
    img.onload = () => URL.revokeObjectURL(url);
    img.src = url;
  };
</script>
</body>
</html>
`
