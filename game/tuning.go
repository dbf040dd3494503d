// Package game is the headless local loop: a fixed-axis runner with a
// gravity/jump integrator, a random obstacle spawner, and AABB collision.
// It knows nothing about rendering; each tick it reports the local player
// state to a sink (the match coordinator).
package game

// World units are pixels on the original 600x150 canvas; the integrator runs
// per frame at the reference 60Hz (dt in milliseconds scales score and speed).
const (
	CanvasWidth  = 600
	CanvasHeight = 150
	GroundY      = CanvasHeight - 30

	Gravity      = 0.6
	JumpVelocity = -10

	SpeedStart     = 0.75
	SpeedMax       = 1.6
	speedRampPerMs = 0.00001

	scoreRatePerMs = 0.01

	DinoX          = 50
	DinoWidth      = 44
	DinoHeight     = 47
	DinoDuckHeight = 30

	spawnMinMs     = 1000.0
	spawnMaxMs     = 2000.0
	initialSpawnMs = 1500.0

	// obstacle sprites are drawn at half scale
	obstacleScale = 0.5

	cactusSmallW, cactusSmallH = 34, 70
	cactusBigW, cactusBigH     = 50, 100
	birdW, birdH               = 92, 80

	birdMinScore = 250
	birdChance   = 0.25

	obstacleSpeedFactor = 5.0

	darkModeEvery   = 500
	scoreChimeEvery = 100
)
