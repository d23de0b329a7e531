package flow

// countdown — секундный обратный отсчёт окна верификации. Сигнал об
// истечении срабатывает ровно один раз, сколько бы тиков ни пришло после нуля.
type countdown struct {
	remaining int
	active    bool
	fired     bool
}

func (c *countdown) start(seconds int) {
	c.remaining = seconds
	c.active = seconds > 0
	c.fired = false
}

func (c *countdown) stop() {
	c.active = false
}

// tick уменьшает счётчик; возвращает true только на тике, доведшем до нуля.
func (c *countdown) tick() bool {
	if !c.active || c.fired {
		return false
	}
	if c.remaining > 0 {
		c.remaining--
	}
	if c.remaining <= 0 {
		c.fired = true
		return true
	}
	return false
}

func (c *countdown) expired() bool {
	return c.fired
}

func (c *countdown) seconds() int {
	if !c.active && !c.fired {
		return 0
	}
	return c.remaining
}

// cooldown — секундный отсчёт до доступности повторной отправки.
type cooldown struct {
	remaining int
}

func (c *cooldown) start(seconds int) {
	c.remaining = seconds
}

func (c *cooldown) tick() {
	if c.remaining > 0 {
		c.remaining--
	}
}

func (c *cooldown) ready() bool {
	return c.remaining <= 0
}

func (c *cooldown) seconds() int {
	return c.remaining
}
