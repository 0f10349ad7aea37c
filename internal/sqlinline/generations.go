package sqlinline

const QInsertGeneration = `--sql 5cb4c0b8-b186-49b7-96f1-6ceb43e272fa
insert into generations (user_id, theme_id, status, input)
values ($1::uuid, $2::uuid, 'queued', coalesce($3::jsonb, '{}'::jsonb))
returning id::text, created_at, updated_at;
`

const QMarkGenerationGenerating = `--sql 38c58901-6bf5-4dc9-8ccc-b64c60adbe97
update generations
set status = 'generating', prompt_final = $2::text, dog_photo_path = $3::text
where id = $1::uuid and status = 'queued';
`

const QMarkGenerationSucceeded = `--sql 0209fc0f-e0a1-4334-b395-765b9d4a32af
update generations
set status = 'succeeded', result_image_path = $2::text, image_width = $3::int, image_height = $4::int, error = null
where id = $1::uuid and status = 'generating';
`

const QMarkGenerationFailed = `--sql a5b9db35-a8fa-49f1-91a9-561d4213948b
update generations
set status = 'failed', error = $2::text
where id = $1::uuid and status in ('queued', 'generating');
`

const QSelectGenerationForUser = `--sql 3f175849-0aa5-4be6-bd93-07d7bd8e5eaf
select id::text, user_id::text, theme_id::text, status, input, prompt_final, dog_photo_path,
       result_image_path, image_width, image_height, error, created_at, updated_at
from generations
where id = $1::uuid and user_id = $2::uuid
limit 1;
`

const QListGenerationsForUser = `--sql eece09c7-bc34-499e-adab-ed96d31aab5f
select id::text, status, result_image_path, created_at
from generations
where user_id = $1::uuid
order by created_at desc
limit $2::int;
`
