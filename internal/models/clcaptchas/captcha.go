package clcaptchas

import (
	"errors"
	"net/http"
	"qrcommerce/internal/clredis"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/mojocn/base64Captcha"
	"github.com/rs/zerolog/log"
)

var (
	ErrMissing   = errors.New("CAPTCHA manquant")
	ErrIncorrect = errors.New("CAPTCHA incorrect")
)

type Captchas struct {
	store  base64Captcha.Store
	driver base64Captcha.Driver
}

// New les réponses sont gardées dans store (redis ou mémoire)
func New(store clredis.Store) *Captchas {
	driver := base64Captcha.NewDriverMath(
		80,  // hauteur
		240, // largeur
		6,   // nombre d'opérations à afficher
		base64Captcha.OptionShowHollowLine,
		nil, // couleur de fond
		nil, // police
		nil, // couleurs
	)

	return &Captchas{
		store:  clredis.NewCaptchaStore(store),
		driver: driver,
	}
}

// GenerateCaptcha la réponse n'est renvoyée qu'hors production
func (cap *Captchas) GenerateCaptcha(production bool) (gin.H, error) {
	captcha := base64Captcha.NewCaptcha(cap.driver, cap.store)

	id, b64s, answer, err := captcha.Generate()
	if err != nil {
		return nil, errors.New("erreur lors de la génération du CAPTCHA")
	}

	data := gin.H{
		"captcha_id": id,
		"image":      b64s,
		"answer":     "",
	}

	if !production {
		log.Debug().Str("captcha_id", id).Str("answer", answer).Msg("CAPTCHA généré")
		data["answer"] = answer
	}

	return data, nil
}

func (cap *Captchas) VerifyCaptcha(captchaID string, captchaAnswer string) error {
	captchaID = strings.TrimSpace(captchaID)
	captchaAnswer = strings.TrimSpace(captchaAnswer)

	if captchaID == "" || captchaAnswer == "" {
		return ErrMissing
	}

	if !cap.store.Verify(captchaID, captchaAnswer, true) {
		return ErrIncorrect
	}
	return nil
}

func (cap *Captchas) CaptchaHandler(production bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := cap.GenerateCaptcha(production)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, data)
	}
}
