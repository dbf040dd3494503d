package game

import "math/rand/v2"

// Input carries the edge-triggered jump press and the level duck hold for one
// frame.
type Input struct {
	Jump bool
	Duck bool
}

// Events are the frame's noteworthy outcomes, surfaced as data; sounds and
// theming are the presentation layer's business.
type Events struct {
	Jumped         bool
	Crashed        bool
	ScoreMilestone bool
	DarkToggled    bool
}

// Step advances the world by dtMs. Order matches the reference loop: speed
// ramp, input, dino physics, collision, obstacle spawn/move, score accrual.
func (s *State) Step(dtMs float64, in Input, rng *rand.Rand) Events {
	var ev Events

	if s.Speed < SpeedMax {
		s.Speed += speedRampPerMs * dtMs
		if s.Speed > SpeedMax {
			s.Speed = SpeedMax
		}
	}

	if !s.GameOver {
		s.Dino.Duck(in.Duck)
		if in.Jump && s.Dino.Jump() {
			ev.Jumped = true
		}
		s.Dino.step()
		if s.collides() {
			s.GameOver = true
			ev.Crashed = true
		}
	}

	s.stepObstacles(dtMs, rng)

	if !s.GameOver {
		old := int(s.Score)
		s.Score += scoreRatePerMs * dtMs * s.Speed
		next := int(s.Score)
		if next > old {
			if next%scoreChimeEvery == 0 {
				ev.ScoreMilestone = true
			}
			if next%darkModeEvery == 0 {
				s.DarkMode = !s.DarkMode
				ev.DarkToggled = true
			}
		}
	}

	return ev
}

func (s *State) stepObstacles(dtMs float64, rng *rand.Rand) {
	s.spawnTimerMs += dtMs * s.Speed
	if s.spawnTimerMs > s.spawnIntervalMs {
		s.spawnObstacle(rng)
		s.spawnTimerMs = 0
		s.spawnIntervalMs = spawnMinMs + rng.Float64()*(spawnMaxMs-spawnMinMs)
	}

	kept := s.Obstacles[:0]
	for i := range s.Obstacles {
		s.Obstacles[i].X -= s.Speed * obstacleSpeedFactor
		if s.Obstacles[i].X+s.Obstacles[i].Width > 0 {
			kept = append(kept, s.Obstacles[i])
		}
	}
	s.Obstacles = kept
}

// collides checks the dino's inset box against each obstacle's own hit box.
func (s *State) collides() bool {
	dx := s.Dino.X + 5
	dy := s.Dino.Y + 5
	dw := s.Dino.Width - 10
	dh := s.Dino.Height - 10

	for _, obs := range s.Obstacles {
		ox := obs.X + obs.Hit.X
		oy := obs.Y + obs.Hit.Y
		if dx < ox+obs.Hit.W &&
			dx+dw > ox &&
			dy < oy+obs.Hit.H &&
			dy+dh > oy {
			return true
		}
	}
	return false
}
