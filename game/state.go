package game

import (
	"math/rand/v2"

	"github.com/ahmadeko2017/dino-online/session"
)

type Dino struct {
	X, Y   float64
	DY     float64
	Width  float64
	Height float64
	State  string
}

func NewDino() Dino {
	return Dino{
		X:      DinoX,
		Y:      GroundY - DinoHeight,
		Width:  DinoWidth,
		Height: DinoHeight,
		State:  session.StateStanding,
	}
}

func (d *Dino) onGround() bool {
	return d.Y == GroundY-d.Height
}

// Jump launches only from the ground. Reports whether it did.
func (d *Dino) Jump() bool {
	if !d.onGround() {
		return false
	}
	d.DY = JumpVelocity
	d.State = session.StateJumping
	return true
}

// Duck is ignored mid-jump; releasing restores full height.
func (d *Dino) Duck(down bool) {
	if d.State == session.StateJumping {
		return
	}
	if down {
		d.State = session.StateDucking
		d.Height = DinoDuckHeight
	} else {
		d.State = session.StateStanding
		d.Height = DinoHeight
	}
}

func (d *Dino) step() {
	d.Y += d.DY
	if d.Y < GroundY-d.Height {
		d.DY += Gravity
	} else {
		d.DY = 0
		d.Y = GroundY - d.Height
		if d.State == session.StateJumping {
			d.State = session.StateStanding
		}
	}
}

type ObstacleKind int

const (
	CactusSmall ObstacleKind = iota
	CactusBig
	CactusGroup
	Bird
)

// Box is a collision rectangle offset from the obstacle origin.
type Box struct {
	X, Y, W, H float64
}

type Obstacle struct {
	Kind          ObstacleKind
	X, Y          float64
	Width, Height float64
	Hit           Box
}

// State is one player's full local world. It is not safe for concurrent use;
// the Runner serializes access on its loop goroutine.
type State struct {
	Dino      Dino
	Obstacles []Obstacle
	Score     float64
	Speed     float64
	GameOver  bool
	DarkMode  bool

	spawnTimerMs    float64
	spawnIntervalMs float64
}

func NewState() *State {
	return &State{
		Dino:            NewDino(),
		Speed:           SpeedStart,
		spawnIntervalMs: initialSpawnMs,
	}
}

func (s *State) spawnObstacle(rng *rand.Rand) {
	if s.Score > birdMinScore && rng.Float64() < birdChance {
		s.spawnBird(rng)
		return
	}

	var kind ObstacleKind
	w, h := float64(cactusBigW)*obstacleScale, float64(cactusBigH)*obstacleScale
	switch roll := rng.Float64(); {
	case roll < 0.33:
		kind = CactusSmall
		w, h = float64(cactusSmallW)*obstacleScale, float64(cactusSmallH)*obstacleScale
	case roll < 0.66:
		kind = CactusBig
	default:
		kind = CactusGroup
	}

	s.Obstacles = append(s.Obstacles, Obstacle{
		Kind:   kind,
		X:      CanvasWidth,
		Y:      GroundY - h + 5,
		Width:  w,
		Height: h,
		Hit:    Box{X: 5, Y: 5, W: w - 10, H: h - 10},
	})
}

func (s *State) spawnBird(rng *rand.Rand) {
	// three lanes: duck-only, duck-or-jump, jump-only
	lanes := [3]float64{GroundY - 45, GroundY - 30, GroundY - 10}
	lane := lanes[rng.IntN(len(lanes))]

	w, h := float64(birdW)*obstacleScale, float64(birdH)*obstacleScale
	s.Obstacles = append(s.Obstacles, Obstacle{
		Kind:   Bird,
		X:      CanvasWidth,
		Y:      lane - h + 10,
		Width:  w,
		Height: h,
		Hit:    Box{X: 5, Y: 10, W: w - 10, H: h - 20},
	})
}
